package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/core/pagination"
	"github.com/vietddude/livesync/internal/infra/storage/memory"
)

func TestParseArgs(t *testing.T) {
	got := parseArgs(map[string]string{
		"channel":  "general",
		"priority": "3",
		"score":    "0.5",
		"pinned":   "true",
	})
	want := domain.Args{
		"channel":  "general",
		"priority": int64(3),
		"score":    0.5,
		"pinned":   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseArgs mismatch (-want +got):\n%s", diff)
	}
	if !got.Matches(json.RawMessage(`{"channel":"general","priority":3,"score":0.5,"pinned":true}`)) {
		t.Error("typed args should match JSON fields")
	}
}

func TestLoadPages(t *testing.T) {
	store := memory.NewMemoryStorage()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 1; i <= 5; i++ {
		if _, err := store.Insert(ctx, "messages", domain.Record{ID: string(rune('a' + i - 1)), SortKey: int64(i)}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tests := []struct {
		name      string
		maxPages  int
		wantItems int
		status    pagination.Status
	}{
		{"all pages", 0, 5, pagination.StatusExhausted},
		{"two pages", 2, 4, pagination.StatusCanLoadMore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := pagination.Open(ctx, store, "messages", nil, pagination.Options{PageSize: 2})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer list.Close()

			if err := loadPages(ctx, list, tt.maxPages); err != nil {
				t.Fatalf("loadPages failed: %v", err)
			}
			snap := list.Snapshot()
			if len(snap.Items) != tt.wantItems || snap.Status != tt.status {
				t.Errorf("expected %d items %s, got %d items %s", tt.wantItems, tt.status, len(snap.Items), snap.Status)
			}
		})
	}
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, pagination.Snapshot{
		Items:       []domain.Record{{ID: "a", SortKey: 1, Fields: json.RawMessage(`{"v":1}`)}, {ID: "b", SortKey: 2}},
		Status:      pagination.StatusExhausted,
		PagesLoaded: 1,
	})

	out := buf.String()
	for _, want := range []string{"a", `{"v":1}`, "2 item(s)", "1 page(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
