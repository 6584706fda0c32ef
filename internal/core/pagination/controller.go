package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/infra/storage"
	"github.com/vietddude/livesync/internal/metrics"
)

// DefaultPageSize is used when Options.PageSize is zero.
const DefaultPageSize = 50

const maxTransitions = 10

var (
	// ErrInvalidPageSize is returned by Open for a negative page size.
	ErrInvalidPageSize = errors.New("page size must be a positive integer")

	// ErrListFetch wraps a failed page request.
	ErrListFetch = errors.New("list page fetch failed")

	// ErrClosed is returned when operating on a closed controller.
	ErrClosed = errors.New("list controller closed")
)

// Options configures a Controller.
type Options struct {
	// PageSize is the default number of records per page (default 50).
	PageSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnChange is called after every state mutation.
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	ID          string
	Query       string
	Items       []domain.Record
	Status      Status
	Err         error
	PagesLoaded int
}

// Controller owns the accumulated result set of one (query, args) pair.
type Controller struct {
	id       string
	query    string
	args     domain.Args
	provider storage.Pager
	pageSize int
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	status      Status
	cursor      domain.Cursor
	view        *view
	err         error
	pagesLoaded int
	closed      bool
	pending     context.CancelFunc
	pendingSize int
	idle        chan struct{}
	transitions []Transition
	callback    func(Snapshot)

	notifyMu sync.Mutex
}

// Open creates a controller in LoadingFirstPage and issues the first page
// request. When provider implements storage.Feed the controller also applies
// live change events until Close.
func Open(
	ctx context.Context,
	provider storage.Pager,
	query string,
	args domain.Args,
	opts Options,
) (*Controller, error) {
	if opts.PageSize < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, opts.PageSize)
	}
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	cctx, cancel := context.WithCancel(ctx)

	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		id:       id,
		query:    query,
		args:     args,
		provider: provider,
		pageSize: opts.PageSize,
		log:      opts.Logger.With("list", id, "query", query),
		ctx:      cctx,
		cancel:   cancel,
		status:   StatusLoadingFirstPage,
		cursor:   domain.CursorStart,
		view:     newView(),
		idle:     idle,
		callback: opts.OnChange,
	}

	if feed, ok := provider.(storage.Feed); ok {
		events, err := feed.Subscribe(cctx, query, args)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", query, err)
		}
		go c.consume(events)
	}

	metrics.OpenLists.WithLabelValues(query).Inc()
	// Cancelling the caller's ctx closes the list like Close does.
	context.AfterFunc(cctx, c.Close)

	c.mu.Lock()
	c.recordTransition(NewTransition("", StatusLoadingFirstPage, "opened"))
	c.startFetch(c.pageSize)
	c.mu.Unlock()

	c.log.Debug("List opened", "page_size", c.pageSize)
	return c, nil
}

// ID returns the controller's instance identifier.
func (c *Controller) ID() string {
	return c.id
}

// LoadMore requests the next page of n records (n <= 0 uses the page size).
// It reports whether a fetch was started. While a fetch is pending, or once
// the list is exhausted or closed, it does nothing. From Error it retries the
// page that failed.
func (c *Controller) LoadMore(n int) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	if n <= 0 {
		n = c.pageSize
		if c.status == StatusError && c.pendingSize > 0 {
			n = c.pendingSize
		}
	}

	switch c.status {
	case StatusCanLoadMore:
		c.setStatus(StatusLoadingMore, "load more")
	case StatusError:
		if c.pagesLoaded == 0 {
			c.setStatus(StatusLoadingFirstPage, "retry first page")
		} else {
			c.setStatus(StatusLoadingMore, "retry page")
		}
	default:
		c.mu.Unlock()
		return false
	}
	c.startFetch(n)
	c.mu.Unlock()

	c.notify()
	return true
}

// Apply reconciles a live change event into the view. Events for another
// query, or arriving after Close, are dropped.
func (c *Controller) Apply(ev domain.ChangeEvent) bool {
	if ev.Query != "" && ev.Query != c.query {
		return false
	}
	// An upsert that no longer matches args leaves this query's result set.
	if ev.Kind == domain.ChangeUpsert && !c.args.Matches(ev.Record.Fields) {
		ev = domain.ChangeEvent{Query: ev.Query, Kind: domain.ChangeDelete, Record: ev.Record}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	changed := c.view.apply(ev)
	c.mu.Unlock()

	metrics.LiveEvents.WithLabelValues(c.query, string(ev.Kind), strconv.FormatBool(changed)).Inc()
	if changed {
		c.log.Debug("Live event applied", "kind", ev.Kind, "id", ev.Record.ID)
		c.notify()
	}
	return changed
}

// Close cancels the pending request and the live subscription. After Close
// no response or event mutates state. Close is idempotent and also runs when
// the ctx given to Open ends.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending()
	}
	c.cancel()
	metrics.OpenLists.WithLabelValues(c.query).Dec()
	c.log.Debug("List closed")
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Wait blocks until no page fetch is in flight or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Transitions returns the most recent status changes, oldest first.
func (c *Controller) Transitions() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

// SetChangeCallback registers a callback for state changes.
func (c *Controller) SetChangeCallback(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = fn
}

// startFetch must be called with mu held and the status already set to a
// loading status.
func (c *Controller) startFetch(n int) {
	fetchCtx, cancel := context.WithCancel(c.ctx)
	idle := make(chan struct{})

	c.pending = cancel
	c.pendingSize = n
	c.idle = idle
	c.view.beginFetch()

	req := domain.PageRequest{Cursor: c.cursor, NumItems: n}
	go func() {
		defer close(idle)
		defer cancel()

		page, err := c.provider.Page(fetchCtx, c.query, c.args, req)
		c.finishFetch(fetchCtx, page, err)
	}()
}

func (c *Controller) finishFetch(fetchCtx context.Context, page domain.Page, err error) {
	c.mu.Lock()
	if c.closed || fetchCtx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil

	if err != nil {
		c.view.abortFetch()
		c.err = fmt.Errorf("%w: %w", ErrListFetch, err)
		c.setStatus(StatusError, err.Error())
		c.mu.Unlock()

		metrics.PageLoads.WithLabelValues(c.query, "error").Inc()
		c.log.Warn("Page fetch failed", "error", err)
		c.notify()
		return
	}

	c.pendingSize = 0
	added := c.view.appendPage(page)
	c.cursor = page.ContinueCursor
	c.pagesLoaded++
	c.err = nil
	if page.IsDone {
		c.setStatus(StatusExhausted, "provider reported done")
	} else {
		c.setStatus(StatusCanLoadMore, "page loaded")
	}
	total := c.view.len()
	c.mu.Unlock()

	metrics.PageLoads.WithLabelValues(c.query, "ok").Inc()
	c.log.Debug("Page loaded", "received", len(page.Records), "added", added, "total", total, "done", page.IsDone)
	c.notify()
}

// consume applies live events in delivery order until the feed closes.
func (c *Controller) consume(events <-chan domain.ChangeEvent) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Apply(ev)
		}
	}
}

// setStatus must be called with mu held.
func (c *Controller) setStatus(to Status, reason string) {
	t := NewTransition(c.status, to, reason)
	if !t.IsValid() {
		c.log.Error("Rejected status change", "error", ErrInvalidTransition, "from", t.From, "to", t.To)
		return
	}
	c.status = to
	c.recordTransition(t)
}

func (c *Controller) recordTransition(t Transition) {
	if len(c.transitions) >= maxTransitions {
		copy(c.transitions, c.transitions[1:])
		c.transitions[len(c.transitions)-1] = t
		return
	}
	c.transitions = append(c.transitions, t)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          c.id,
		Query:       c.query,
		Items:       c.view.records(),
		Status:      c.status,
		Err:         c.err,
		PagesLoaded: c.pagesLoaded,
	}
}

// notify delivers the latest snapshot to the callback. Callers must not hold mu.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed || c.callback == nil {
		c.mu.Unlock()
		return
	}
	cb := c.callback
	snap := c.snapshotLocked()
	c.mu.Unlock()

	cb(snap)
}
