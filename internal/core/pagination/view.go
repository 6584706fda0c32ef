package pagination

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/vietddude/livesync/internal/core/domain"
)

// view is the identity-keyed ordered result set of one controller.
//
// Loaded pages form a contiguous prefix of the server order ending at
// boundary. Once the query is exhausted every position is in range.
type view struct {
	items       *orderedmap.OrderedMap[string, domain.Record]
	boundary    domain.Position
	hasBoundary bool
	exhausted   bool

	// inflight holds the latest event per key seen while a page request is
	// outstanding. The page may have been read before those writes.
	inflight map[string]domain.ChangeEvent
}

func newView() *view {
	return &view{items: orderedmap.New[string, domain.Record]()}
}

// beginFetch starts recording live events for the next page.
func (v *view) beginFetch() {
	v.inflight = make(map[string]domain.ChangeEvent)
}

// abortFetch drops the events recorded for a page that never arrived.
func (v *view) abortFetch() {
	v.inflight = nil
}

// appendPage adds page records at the tail. Keys already present keep their
// first-seen position and value. Keys touched by a live event while the page
// was in flight take the event's outcome instead of the page's copy.
func (v *view) appendPage(page domain.Page) (added int) {
	seen := v.inflight
	v.inflight = nil

	for _, rec := range page.Records {
		if _, ok := v.items.Get(rec.ID); ok {
			continue
		}
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		v.items.Set(rec.ID, rec)
		added++
	}

	if n := len(page.Records); n > 0 {
		last := page.Records[n-1].Position()
		if !v.hasBoundary || last.Compare(v.boundary) > 0 {
			v.boundary = last
			v.hasBoundary = true
		}
	}
	if page.IsDone {
		v.exhausted = true
	}

	for id, ev := range seen {
		if ev.Kind != domain.ChangeUpsert {
			continue
		}
		if _, ok := v.items.Get(id); ok {
			continue
		}
		if v.inRange(ev.Record.Position()) {
			v.insertOrdered(ev.Record)
			added++
		}
	}
	return added
}

// inRange reports whether pos falls inside the loaded pages.
func (v *view) inRange(pos domain.Position) bool {
	if v.exhausted {
		return true
	}
	return v.hasBoundary && pos.Compare(v.boundary) <= 0
}

// apply reconciles one live event and reports whether the view changed.
func (v *view) apply(ev domain.ChangeEvent) bool {
	rec := ev.Record
	if v.inflight != nil {
		v.inflight[rec.ID] = ev
	}

	switch ev.Kind {
	case domain.ChangeDelete:
		_, present := v.items.Delete(rec.ID)
		return present

	case domain.ChangeUpsert:
		if _, present := v.items.Get(rec.ID); present {
			if !ev.Relocate {
				v.items.Set(rec.ID, rec)
				return true
			}
			v.items.Delete(rec.ID)
			if v.inRange(rec.Position()) {
				v.insertOrdered(rec)
			}
			return true
		}

		if !v.inRange(rec.Position()) {
			return false
		}
		v.insertOrdered(rec)
		return true
	}

	return false
}

// insertOrdered places rec before the first item that sorts after it.
func (v *view) insertOrdered(rec domain.Record) {
	pos := rec.Position()
	var mark string
	found := false
	for pair := v.items.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Position().Compare(pos) > 0 {
			mark = pair.Key
			found = true
			break
		}
	}

	v.items.Set(rec.ID, rec)
	if found {
		_ = v.items.MoveBefore(rec.ID, mark)
	}
}

func (v *view) len() int {
	return v.items.Len()
}

func (v *view) records() []domain.Record {
	out := make([]domain.Record, 0, v.items.Len())
	for pair := v.items.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
