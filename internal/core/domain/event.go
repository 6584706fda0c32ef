package domain

import "encoding/json"

// ChangeKind is the type of a live update.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is a live update pushed by a reactive query.
// For deletes only Record.ID is required.
type ChangeEvent struct {
	Query  string     `json:"query"`
	Kind   ChangeKind `json:"kind"`
	Record Record     `json:"record"`

	// Previous holds the fields before an update, when known.
	Previous json.RawMessage `json:"previous,omitempty"`

	// Relocate asks the consumer to move an existing record to its
	// current server position instead of updating it in place.
	Relocate bool `json:"relocate,omitempty"`
}

// Concerns reports whether a subscriber filtering on args must see the
// event. An update that moves a record out of args still concerns it so the
// record can be dropped.
func (e ChangeEvent) Concerns(args Args) bool {
	if len(args) == 0 {
		return true
	}
	if e.Kind == ChangeDelete && len(e.Record.Fields) == 0 {
		return true
	}
	if args.Matches(e.Record.Fields) {
		return true
	}
	return len(e.Previous) > 0 && args.Matches(e.Previous)
}
