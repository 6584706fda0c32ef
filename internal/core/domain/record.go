package domain

import (
	"encoding/json"
	"strings"
)

// Record is a single row of a query result.
// ID is the identity key; (SortKey, ID) is the server order.
type Record struct {
	ID      string          `json:"id"`
	SortKey int64           `json:"sort_key"`
	Fields  json.RawMessage `json:"fields,omitempty"`
}

// Position returns the record's place in server order.
func (r Record) Position() Position {
	return Position{SortKey: r.SortKey, ID: r.ID}
}

// Position is a point in the server ordering.
type Position struct {
	SortKey int64
	ID      string
}

// Compare orders positions by SortKey, then ID.
func (p Position) Compare(o Position) int {
	switch {
	case p.SortKey < o.SortKey:
		return -1
	case p.SortKey > o.SortKey:
		return 1
	}
	return strings.Compare(p.ID, o.ID)
}

// Args are query arguments. Two Args are the same query when they are
// structurally equal.
type Args map[string]any

// Matches reports whether fields contain args with Postgres jsonb @>
// semantics. An array argument matches when each of its elements is contained
// in some element of the field's array. Numbers compare by JSON value.
func (a Args) Matches(fields json.RawMessage) bool {
	if len(a) == 0 {
		return true
	}
	if len(fields) == 0 {
		return false
	}

	var got map[string]any
	if err := json.Unmarshal(fields, &got); err != nil {
		return false
	}
	want, err := a.normalize()
	if err != nil {
		return false
	}
	return contains(got, want)
}

// contains reports whether got contains want as decoded JSON values.
func contains(got, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok || !contains(gv, wv) {
				return false
			}
		}
		return true

	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, gv := range g {
				if contains(gv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true

	default:
		switch got.(type) {
		case map[string]any, []any:
			return false
		}
		return got == want
	}
}

func (a Args) normalize() (map[string]any, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
