package pagination

import (
	"errors"
	"time"

	"github.com/vietddude/livesync/internal/core/domain"
)

// Status is an alias for domain.ListStatus for internal use.
type Status = domain.ListStatus

// Status constants re-exported for convenience.
const (
	StatusLoadingFirstPage = domain.ListStatusLoadingFirstPage
	StatusCanLoadMore      = domain.ListStatusCanLoadMore
	StatusLoadingMore      = domain.ListStatusLoadingMore
	StatusExhausted        = domain.ListStatusExhausted
	StatusError            = domain.ListStatusError
)

// ErrInvalidTransition is returned when an invalid status transition is attempted.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidTransitions defines allowed status transitions.
// Key is the current status, value is the list of valid next statuses.
var ValidTransitions = map[Status][]Status{
	StatusLoadingFirstPage: {StatusCanLoadMore, StatusExhausted, StatusError},
	StatusCanLoadMore:      {StatusLoadingMore},
	StatusLoadingMore:      {StatusCanLoadMore, StatusExhausted, StatusError},
	StatusError:            {StatusLoadingFirstPage, StatusLoadingMore},
	StatusExhausted:        {},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a status change with metadata.
type Transition struct {
	From      Status
	To        Status
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to Status, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// IsLoading reports whether a page fetch is in flight in status s.
func IsLoading(s Status) bool {
	return s == StatusLoadingFirstPage || s == StatusLoadingMore
}

// StatusDescription returns a human-readable description of a status.
func StatusDescription(s Status) string {
	switch s {
	case StatusLoadingFirstPage:
		return "Loading - fetching the first page"
	case StatusCanLoadMore:
		return "Ready - more pages available"
	case StatusLoadingMore:
		return "Loading - fetching the next page"
	case StatusExhausted:
		return "Complete - all pages loaded"
	case StatusError:
		return "Error - last page request failed, LoadMore retries it"
	default:
		return "Unknown status"
	}
}
