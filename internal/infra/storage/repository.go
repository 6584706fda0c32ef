package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vietddude/livesync/internal/core/domain"
)

var (
	// ErrInvalidCursor is returned when a cursor was not issued by this codec.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrUnknownQuery is returned for a query the backend does not serve.
	ErrUnknownQuery = errors.New("unknown query")
)

// Pager serves one page of a server-ordered query.
type Pager interface {
	// Page returns up to req.NumItems records following req.Cursor.
	Page(ctx context.Context, query string, args domain.Args, req domain.PageRequest) (domain.Page, error)
}

// Feed pushes change events for a query.
type Feed interface {
	// Subscribe streams events matching args until ctx ends, then closes
	// the channel.
	Subscribe(ctx context.Context, query string, args domain.Args) (<-chan domain.ChangeEvent, error)
}

// Publisher emits change events after a write.
type Publisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// Provider is the query capability consumed by list controllers.
// Live providers additionally implement Feed.
type Provider interface {
	Pager
}

// Live combines a Pager with a Feed.
type Live struct {
	Pager
	Feed
}

// NewLive pairs a pager with a change feed.
func NewLive(p Pager, f Feed) *Live {
	return &Live{Pager: p, Feed: f}
}

// EncodeCursor builds the opaque continuation token for pos.
func EncodeCursor(pos domain.Position) domain.Cursor {
	raw := strconv.FormatInt(pos.SortKey, 10) + ":" + pos.ID
	return domain.Cursor(base64.RawURLEncoding.EncodeToString([]byte(raw)))
}

// DecodeCursor parses a token built by EncodeCursor.
// CursorStart decodes to ok == false.
func DecodeCursor(c domain.Cursor) (pos domain.Position, ok bool, err error) {
	if c == domain.CursorStart {
		return domain.Position{}, false, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	key, id, found := strings.Cut(string(raw), ":")
	if !found || id == "" {
		return domain.Position{}, false, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}

	sortKey, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return domain.Position{SortKey: sortKey, ID: id}, true, nil
}
