package config

import (
	"time"

	"github.com/vietddude/livesync/internal/infra/fetch"
	redisclient "github.com/vietddude/livesync/internal/infra/redis"
	"github.com/vietddude/livesync/internal/infra/storage/postgres"
	"github.com/vietddude/livesync/internal/integrations/weather"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Backend  string             `yaml:"backend"` // memory, postgres
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	List     ListConfig         `yaml:"list"`
	Fetch    FetchConfig        `yaml:"fetch"`
	Weather  WeatherConfig      `yaml:"weather"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ListConfig selects the query opened by the list command and seeds the
// memory backend.
type ListConfig struct {
	Query    string         `yaml:"query"`
	Args     map[string]any `yaml:"args"`
	PageSize int            `yaml:"page_size"`
	Seed     []SeedRecord   `yaml:"seed"`
}

// SeedRecord is a record loaded into the memory backend at startup.
type SeedRecord struct {
	ID      string         `yaml:"id"`
	SortKey int64          `yaml:"sort_key"`
	Fields  map[string]any `yaml:"fields"`
}

// FetchConfig holds the retry policy for outbound calls.
type FetchConfig struct {
	// InitialDelay is a pointer so an explicit 0 (retry immediately) is kept.
	InitialDelay *time.Duration `yaml:"initial_delay"`
	MaxAttempts  int            `yaml:"max_attempts"`
	MaxDelay     time.Duration  `yaml:"max_delay"`
	Jitter       float64        `yaml:"jitter"`
	Timeout      time.Duration  `yaml:"timeout"` // per attempt
}

// Policy converts the config to a retry policy.
func (c FetchConfig) Policy() fetch.Policy {
	initial := fetch.DefaultPolicy.InitialDelay
	if c.InitialDelay != nil {
		initial = *c.InitialDelay
	}
	return fetch.Policy{
		InitialDelay: initial,
		MaxAttempts:  c.MaxAttempts,
		MaxDelay:     c.MaxDelay,
		Multiplier:   2,
		Jitter:       c.Jitter,
	}
}

// WeatherConfig holds the geocoding and forecast endpoints.
type WeatherConfig struct {
	GeocodeURL  string `yaml:"geocode_url"`
	ForecastURL string `yaml:"forecast_url"`
	Language    string `yaml:"language"`
}

// Client converts the config for the weather client.
func (c WeatherConfig) Client(policy fetch.Policy) weather.Config {
	return weather.Config{
		GeocodeURL:  c.GeocodeURL,
		ForecastURL: c.ForecastURL,
		Language:    c.Language,
		Policy:      policy,
	}
}
