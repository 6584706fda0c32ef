package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/infra/storage"
	"github.com/vietddude/livesync/internal/metrics"
)

const defaultTable = "records"

type recordRow struct {
	ID      string `db:"id"`
	SortKey int64  `db:"sort_key"`
	Fields  []byte `db:"fields"`
}

func (r recordRow) toDomain() domain.Record {
	return domain.Record{ID: r.ID, SortKey: r.SortKey, Fields: json.RawMessage(r.Fields)}
}

// RecordRepo implements storage.Pager over a records table.
type RecordRepo struct {
	db        *DB
	table     string
	queries   []string
	publisher storage.Publisher
	log       *slog.Logger
}

// RepoOption configures a RecordRepo.
type RepoOption func(*RecordRepo)

// WithTable uses a table other than "records". It must have the same shape.
func WithTable(name string) RepoOption {
	return func(r *RecordRepo) {
		if name != "" {
			r.table = name
		}
	}
}

// WithQueries restricts the repo to the named queries.
func WithQueries(queries ...string) RepoOption {
	return func(r *RecordRepo) {
		r.queries = queries
	}
}

// WithPublisher publishes a change event after every committed write.
func WithPublisher(p storage.Publisher) RepoOption {
	return func(r *RecordRepo) {
		r.publisher = p
	}
}

// WithRepoLogger sets the logger.
func WithRepoLogger(l *slog.Logger) RepoOption {
	return func(r *RecordRepo) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRecordRepo creates a new PostgreSQL record repository.
func NewRecordRepo(db *DB, opts ...RepoOption) *RecordRepo {
	r := &RecordRepo{db: db, table: defaultTable, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RecordRepo) checkQuery(query string) error {
	if len(r.queries) > 0 && !slices.Contains(r.queries, query) {
		return fmt.Errorf("%w: %s", storage.ErrUnknownQuery, query)
	}
	return nil
}

// pageSQL builds the keyset query. Placeholders: $1 query, $2 args,
// $3 limit, then $4/$5 for the cursor position when afterCursor is set.
func pageSQL(table string, afterCursor bool) string {
	var b strings.Builder
	b.WriteString("SELECT id, sort_key, fields FROM ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" WHERE query = $1 AND fields @> $2::jsonb")
	if afterCursor {
		b.WriteString(" AND (sort_key, id) > ($4, $5)")
	}
	b.WriteString(" ORDER BY sort_key, id LIMIT $3")
	return b.String()
}

// Page implements storage.Pager. Args are matched by JSONB containment.
func (r *RecordRepo) Page(
	ctx context.Context,
	query string,
	args domain.Args,
	req domain.PageRequest,
) (domain.Page, error) {
	if err := r.checkQuery(query); err != nil {
		return domain.Page{}, err
	}
	if req.NumItems <= 0 {
		return domain.Page{}, fmt.Errorf("page size must be positive, got %d", req.NumItems)
	}

	pos, hasCursor, err := storage.DecodeCursor(req.Cursor)
	if err != nil {
		return domain.Page{}, err
	}

	filter, err := argsJSON(args)
	if err != nil {
		return domain.Page{}, err
	}

	params := []any{query, filter, req.NumItems + 1}
	if hasCursor {
		params = append(params, pos.SortKey, pos.ID)
	}

	start := time.Now()
	var rows []recordRow
	err = r.db.SelectContext(ctx, &rows, pageSQL(r.table, hasCursor), params...)
	metrics.DBQueryDuration.WithLabelValues("page").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Page{}, fmt.Errorf("failed to load page: %w", MapPgError(err))
	}

	page := domain.Page{IsDone: len(rows) <= req.NumItems, ContinueCursor: req.Cursor}
	if !page.IsDone {
		rows = rows[:req.NumItems]
	}
	page.Records = make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		page.Records = append(page.Records, row.toDomain())
	}
	if n := len(page.Records); n > 0 {
		page.ContinueCursor = storage.EncodeCursor(page.Records[n-1].Position())
	}
	return page, nil
}

// Upsert inserts or replaces a record. A missing ID is generated; a zero
// SortKey takes the current time in milliseconds.
func (r *RecordRepo) Upsert(ctx context.Context, query string, rec domain.Record) (domain.Record, error) {
	if err := r.checkQuery(query); err != nil {
		return domain.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SortKey == 0 {
		rec.SortKey = time.Now().UnixMilli()
	}
	if len(rec.Fields) == 0 {
		rec.Fields = json.RawMessage(`{}`)
	}

	table := pq.QuoteIdentifier(r.table)
	var ev domain.ChangeEvent

	start := time.Now()
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		var prev recordRow
		err := tx.GetContext(ctx, &prev,
			"SELECT id, sort_key, fields FROM "+table+" WHERE query = $1 AND id = $2 FOR UPDATE",
			query, rec.ID)
		existed := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read record: %w", MapPgError(err))
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO "+table+` (query, id, sort_key, fields, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, now())
			ON CONFLICT (query, id) DO UPDATE
			SET sort_key = EXCLUDED.sort_key, fields = EXCLUDED.fields, updated_at = now()`,
			query, rec.ID, rec.SortKey, string(rec.Fields))
		if err != nil {
			return fmt.Errorf("failed to upsert record: %w", MapPgError(err))
		}

		ev = domain.ChangeEvent{Query: query, Kind: domain.ChangeUpsert, Record: rec}
		if existed {
			ev.Previous = json.RawMessage(prev.Fields)
			ev.Relocate = prev.SortKey != rec.SortKey
		}
		return nil
	})
	metrics.DBQueryDuration.WithLabelValues("upsert").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Record{}, err
	}

	r.publish(ctx, ev)
	return rec, nil
}

// Delete removes a record by ID. Deleting a missing record is a no-op.
func (r *RecordRepo) Delete(ctx context.Context, query, id string) error {
	if err := r.checkQuery(query); err != nil {
		return err
	}

	start := time.Now()
	var removed recordRow
	err := r.db.GetContext(ctx, &removed,
		"DELETE FROM "+pq.QuoteIdentifier(r.table)+" WHERE query = $1 AND id = $2 RETURNING id, sort_key, fields",
		query, id)
	metrics.DBQueryDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", MapPgError(err))
	}

	r.publish(ctx, domain.ChangeEvent{Query: query, Kind: domain.ChangeDelete, Record: removed.toDomain()})
	return nil
}

// Count returns the number of records in a query.
func (r *RecordRepo) Count(ctx context.Context, query string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT count(*) FROM "+pq.QuoteIdentifier(r.table)+" WHERE query = $1", query)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", MapPgError(err))
	}
	return n, nil
}

// publish runs after commit, so a failure is logged rather than returned.
func (r *RecordRepo) publish(ctx context.Context, ev domain.ChangeEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.log.Warn("Failed to publish change event",
			"query", ev.Query,
			"id", ev.Record.ID,
			"kind", ev.Kind,
			"error", err,
		)
	}
}

func argsJSON(args domain.Args) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode args: %w", err)
	}
	return string(b), nil
}
