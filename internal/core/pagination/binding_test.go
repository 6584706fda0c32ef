package pagination

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/infra/storage/memory"
)

func TestSameArgs(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Args
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil and empty", nil, domain.Args{}, true},
		{"equal", domain.Args{"channel": "general"}, domain.Args{"channel": "general"}, true},
		{"nested equal", domain.Args{"f": map[string]any{"a": 1}}, domain.Args{"f": map[string]any{"a": 1}}, true},
		{"different value", domain.Args{"channel": "general"}, domain.Args{"channel": "random"}, false},
		{"extra key", domain.Args{"channel": "general"}, domain.Args{"channel": "general", "x": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameArgs(tt.a, tt.b); got != tt.want {
				t.Errorf("SameArgs(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestBinding_SetArgs(t *testing.T) {
	store := memory.NewMemoryStorage()
	ctx := context.Background()
	for i, channel := range []string{"general", "random", "general"} {
		fields, _ := json.Marshal(map[string]any{"channel": channel})
		if _, err := store.Insert(ctx, "messages", domain.Record{SortKey: int64(i + 1), Fields: fields}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	b, err := Bind(ctx, store, "messages", domain.Args{"channel": "general"}, Options{PageSize: 10})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	defer b.Close()

	first := b.Controller()
	waitIdle(t, first)
	if n := len(first.Snapshot().Items); n != 2 {
		t.Fatalf("expected 2 general items, got %d", n)
	}

	changed, err := b.SetArgs(domain.Args{"channel": "general"})
	if err != nil || changed {
		t.Fatalf("expected no-op for equal args, got changed=%v err=%v", changed, err)
	}
	if b.Controller() != first {
		t.Error("expected the same controller for equal args")
	}

	changed, err = b.SetArgs(domain.Args{"channel": "random"})
	if err != nil || !changed {
		t.Fatalf("expected reopen for new args, got changed=%v err=%v", changed, err)
	}
	if !first.Closed() {
		t.Error("expected previous controller to be closed")
	}

	second := b.Controller()
	if second.ID() == first.ID() {
		t.Error("expected a fresh controller")
	}
	waitIdle(t, second)
	if n := len(second.Snapshot().Items); n != 1 {
		t.Errorf("expected 1 random item, got %d", n)
	}
}

func TestBinding_Closed(t *testing.T) {
	b, err := Bind(context.Background(), memory.NewMemoryStorage(), "messages", nil, Options{})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	c := b.Controller()
	b.Close()

	if !c.Closed() {
		t.Error("expected controller to be closed")
	}
	if _, err := b.SetArgs(domain.Args{"x": 1}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
