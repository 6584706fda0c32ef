package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/livesync/internal/core/domain"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("LIVESYNC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LIVESYNC_TEST_REDIS_URL not set")
	}
	c, err := NewClient(Config{URL: url, Prefix: "livesync-test-" + uuid.NewString()}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "://nope"}, nil); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func TestChannel(t *testing.T) {
	c := &Client{prefix: "app"}
	if got := c.Channel("messages"); got != "app:messages" {
		t.Errorf("expected app:messages, got %s", got)
	}
}

func TestPublishSubscribe(t *testing.T) {
	c := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Subscribe(ctx, "messages", domain.Args{"channel": "general"})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	publish := []domain.ChangeEvent{
		{Query: "messages", Kind: domain.ChangeUpsert, Record: domain.Record{ID: "1", SortKey: 1, Fields: json.RawMessage(`{"channel":"random"}`)}},
		{Query: "messages", Kind: domain.ChangeUpsert, Record: domain.Record{ID: "2", SortKey: 2, Fields: json.RawMessage(`{"channel":"general"}`)}},
		{Query: "messages", Kind: domain.ChangeDelete, Record: domain.Record{ID: "2"}},
	}
	for _, ev := range publish {
		if err := c.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	want := []struct {
		kind domain.ChangeKind
		id   string
	}{
		{domain.ChangeUpsert, "2"},
		{domain.ChangeDelete, "2"},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			if ev.Kind != w.kind || ev.Record.ID != w.id {
				t.Errorf("expected %s %s, got %s %s", w.kind, w.id, ev.Kind, ev.Record.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected channel to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
