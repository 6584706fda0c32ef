// Package memory provides an in-process, live query backend.
//
// Collections are kept sorted by (SortKey, ID). Writes broadcast change
// events to every subscriber the write concerns.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/infra/storage"
)

const subscriberBuffer = 64

type subscriber struct {
	ctx  context.Context
	args domain.Args
	ch   chan domain.ChangeEvent
}

// MemoryStorage is a set of named, ordered collections.
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string][]domain.Record
	subscribers map[string]map[*subscriber]struct{}

	// pubMu keeps event delivery in write order.
	pubMu sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		collections: make(map[string][]domain.Record),
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Insert adds a record. A missing ID is generated; a zero SortKey takes the
// current time in milliseconds.
func (s *MemoryStorage) Insert(ctx context.Context, query string, rec domain.Record) (domain.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SortKey == 0 {
		rec.SortKey = time.Now().UnixMilli()
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if indexOf(s.collections[query], rec.ID) >= 0 {
		s.mu.Unlock()
		return domain.Record{}, fmt.Errorf("record %s already exists in %s", rec.ID, query)
	}
	ev := s.insertLocked(query, rec)
	s.mu.Unlock()

	s.broadcast(ctx, ev)
	return rec, nil
}

// Update replaces an existing record. Changing SortKey emits a relocating
// event.
func (s *MemoryStorage) Update(ctx context.Context, query string, rec domain.Record) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	i := indexOf(s.collections[query], rec.ID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("record %s not found in %s", rec.ID, query)
	}
	ev := s.replaceLocked(query, i, rec)
	s.mu.Unlock()

	s.broadcast(ctx, ev)
	return nil
}

// Upsert inserts rec or replaces the record with the same ID. A zero SortKey
// takes the current time in milliseconds.
func (s *MemoryStorage) Upsert(ctx context.Context, query string, rec domain.Record) (domain.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SortKey == 0 {
		rec.SortKey = time.Now().UnixMilli()
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	var ev domain.ChangeEvent
	if i := indexOf(s.collections[query], rec.ID); i >= 0 {
		ev = s.replaceLocked(query, i, rec)
	} else {
		ev = s.insertLocked(query, rec)
	}
	s.mu.Unlock()

	s.broadcast(ctx, ev)
	return rec, nil
}

// insertLocked must be called with mu held.
func (s *MemoryStorage) insertLocked(query string, rec domain.Record) domain.ChangeEvent {
	s.collections[query] = insertSorted(s.collections[query], rec)
	return domain.ChangeEvent{Query: query, Kind: domain.ChangeUpsert, Record: rec}
}

// replaceLocked must be called with mu held and i the index of rec.ID.
func (s *MemoryStorage) replaceLocked(query string, i int, rec domain.Record) domain.ChangeEvent {
	records := s.collections[query]
	prev := records[i].Fields
	relocate := records[i].SortKey != rec.SortKey
	if relocate {
		records = slices.Delete(records, i, i+1)
		records = insertSorted(records, rec)
	} else {
		records[i] = rec
	}
	s.collections[query] = records

	return domain.ChangeEvent{
		Query:    query,
		Kind:     domain.ChangeUpsert,
		Record:   rec,
		Previous: prev,
		Relocate: relocate,
	}
}

// Delete removes a record by ID. Deleting a missing record is a no-op.
func (s *MemoryStorage) Delete(ctx context.Context, query, id string) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	records := s.collections[query]
	i := indexOf(records, id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := records[i]
	s.collections[query] = slices.Delete(records, i, i+1)
	s.mu.Unlock()

	s.broadcast(ctx, domain.ChangeEvent{Query: query, Kind: domain.ChangeDelete, Record: removed})
	return nil
}

// Page implements storage.Pager with keyset pagination.
func (s *MemoryStorage) Page(
	ctx context.Context,
	query string,
	args domain.Args,
	req domain.PageRequest,
) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}
	if req.NumItems <= 0 {
		return domain.Page{}, fmt.Errorf("numItems must be positive, got %d", req.NumItems)
	}

	after, hasAfter, err := storage.DecodeCursor(req.Cursor)
	if err != nil {
		return domain.Page{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	page := domain.Page{Records: make([]domain.Record, 0, req.NumItems)}
	more := false
	for _, rec := range s.collections[query] {
		if hasAfter && rec.Position().Compare(after) <= 0 {
			continue
		}
		if !args.Matches(rec.Fields) {
			continue
		}
		if len(page.Records) == req.NumItems {
			more = true
			break
		}
		page.Records = append(page.Records, rec)
	}

	page.IsDone = !more
	page.ContinueCursor = req.Cursor
	if n := len(page.Records); n > 0 {
		page.ContinueCursor = storage.EncodeCursor(page.Records[n-1].Position())
	}
	return page, nil
}

// Subscribe implements storage.Feed.
func (s *MemoryStorage) Subscribe(
	ctx context.Context,
	query string,
	args domain.Args,
) (<-chan domain.ChangeEvent, error) {
	sub := &subscriber{
		ctx:  ctx,
		args: args,
		ch:   make(chan domain.ChangeEvent, subscriberBuffer),
	}

	s.mu.Lock()
	subs, ok := s.subscribers[query]
	if !ok {
		subs = make(map[*subscriber]struct{})
		s.subscribers[query] = subs
	}
	subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.pubMu.Lock()
		s.mu.Lock()
		delete(s.subscribers[query], sub)
		s.mu.Unlock()
		close(sub.ch)
		s.pubMu.Unlock()
	}()

	return sub.ch, nil
}

// Len returns the number of records in a collection.
func (s *MemoryStorage) Len(query string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[query])
}

// broadcast must be called with pubMu held.
func (s *MemoryStorage) broadcast(ctx context.Context, ev domain.ChangeEvent) {
	s.mu.RLock()
	targets := make([]*subscriber, 0, len(s.subscribers[ev.Query]))
	for sub := range s.subscribers[ev.Query] {
		if ev.Concerns(sub.args) {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.ch <- ev:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return
		}
	}
}

func indexOf(records []domain.Record, id string) int {
	return slices.IndexFunc(records, func(r domain.Record) bool { return r.ID == id })
}

func insertSorted(records []domain.Record, rec domain.Record) []domain.Record {
	i, _ := slices.BinarySearchFunc(records, rec.Position(), func(r domain.Record, p domain.Position) int {
		return r.Position().Compare(p)
	})
	return slices.Insert(records, i, rec)
}
