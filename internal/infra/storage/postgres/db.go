package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/vietddude/livesync/internal/metrics"
)

const (
	defaultMaxConns        = 10
	defaultMinConns        = 2
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 30 * time.Minute

	poolStatsInterval = 15 * time.Second
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL             string        `yaml:"url"`
	MaxConns        int           `yaml:"max_conns"`
	MinConns        int           `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.MinConns <= 0 {
		c.MinConns = defaultMinConns
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	return c
}

// DB is the record store's connection pool.
type DB struct {
	*sqlx.DB
}

// NewDB opens a pool through the pgx driver and pings it.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	cfg = cfg.withDefaults()

	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: db}, nil
}

// PoolUsage returns in-use connections as a percentage of the pool limit.
func (db *DB) PoolUsage() float64 {
	return poolUsage(db.Stats())
}

// StartMetricsCollector exports pool stats until ctx ends.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()

		recordPoolStats(db.Stats())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recordPoolStats(db.Stats())
			}
		}
	}()
}

// Health pings the database.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// poolUsage is 0 for an unlimited pool.
func poolUsage(s sql.DBStats) float64 {
	if s.MaxOpenConnections <= 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.MaxOpenConnections) * 100
}

func recordPoolStats(s sql.DBStats) {
	metrics.DBConnectionPoolUsage.Set(poolUsage(s))
	metrics.DBPoolConnections.WithLabelValues("in_use").Set(float64(s.InUse))
	metrics.DBPoolConnections.WithLabelValues("idle").Set(float64(s.Idle))
	metrics.DBPoolWaits.Set(float64(s.WaitCount))
}
