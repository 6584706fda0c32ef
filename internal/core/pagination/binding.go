package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/infra/storage"
)

// Binding keeps one open Controller for a query whose args may change.
// Results are never merged across different args.
type Binding struct {
	ctx      context.Context
	provider storage.Pager
	query    string
	opts     Options

	mu      sync.Mutex
	args    domain.Args
	current *Controller
}

// Bind opens a controller for (query, args) and returns its binding.
func Bind(
	ctx context.Context,
	provider storage.Pager,
	query string,
	args domain.Args,
	opts Options,
) (*Binding, error) {
	c, err := Open(ctx, provider, query, args, opts)
	if err != nil {
		return nil, err
	}
	return &Binding{
		ctx:      ctx,
		provider: provider,
		query:    query,
		opts:     opts,
		args:     cloneArgs(args),
		current:  c,
	}, nil
}

// Controller returns the controller for the current args.
func (b *Binding) Controller() *Controller {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// SetArgs closes the current controller and opens a fresh one when args
// differ structurally from the current args. It reports whether a new
// controller was opened.
func (b *Binding) SetArgs(args domain.Args) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return false, ErrClosed
	}
	if SameArgs(b.args, args) {
		return false, nil
	}

	b.current.Close()
	b.current = nil

	c, err := Open(b.ctx, b.provider, b.query, args, b.opts)
	if err != nil {
		return false, fmt.Errorf("failed to reopen %s: %w", b.query, err)
	}
	b.args = cloneArgs(args)
	b.current = c
	return true, nil
}

// Close closes the current controller.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.current.Close()
		b.current = nil
	}
}

// SameArgs reports whether two argument sets describe the same query.
// Nil and empty args are equal.
func SameArgs(a, b domain.Args) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

func cloneArgs(args domain.Args) domain.Args {
	if args == nil {
		return nil
	}
	out := make(domain.Args, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
