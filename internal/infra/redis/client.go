// Package redis carries change events between processes over Redis Pub/Sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/livesync/internal/core/domain"
)

const (
	defaultPrefix    = "livesync"
	subscriberBuffer = 64
)

// Client publishes and subscribes to change events.
type Client struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{rdb: rdb, prefix: prefix, log: log}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Channel returns the Pub/Sub channel for a query.
func (c *Client) Channel(query string) string {
	return fmt.Sprintf("%s:%s", c.prefix, query)
}

// Publish implements storage.Publisher.
func (c *Client) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.Channel(ev.Query), payload).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Subscribe implements storage.Feed. Events that do not concern args are
// dropped. The returned channel closes when ctx ends or the subscription
// breaks.
func (c *Client) Subscribe(
	ctx context.Context,
	query string,
	args domain.Args,
) (<-chan domain.ChangeEvent, error) {
	pubsub := c.rdb.Subscribe(ctx, c.Channel(query))

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	out := make(chan domain.ChangeEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					c.log.Warn("Dropping malformed change event", "channel", msg.Channel, "error", err)
					continue
				}
				if ev.Query == "" {
					ev.Query = query
				}
				if !ev.Concerns(args) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
