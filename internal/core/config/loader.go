package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/livesync/internal/infra/fetch"
	"github.com/vietddude/livesync/internal/integrations/weather"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding environment variables first, and applies
// defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.List.Args = normalizeMap(cfg.List.Args)
	for i := range cfg.List.Seed {
		cfg.List.Seed[i].Fields = normalizeMap(cfg.List.Seed[i].Fields)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.List.Query == "" {
		c.List.Query = "messages"
	}

	if c.Fetch.InitialDelay == nil {
		d := fetch.DefaultPolicy.InitialDelay
		c.Fetch.InitialDelay = &d
	}
	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = fetch.DefaultPolicy.MaxAttempts
	}
	if c.Fetch.MaxDelay == 0 {
		c.Fetch.MaxDelay = fetch.DefaultPolicy.MaxDelay
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 10 * time.Second
	}

	if c.Weather.GeocodeURL == "" {
		c.Weather.GeocodeURL = weather.DefaultGeocodeURL
	}
	if c.Weather.ForecastURL == "" {
		c.Weather.ForecastURL = weather.DefaultForecastURL
	}
}

// Validate checks cross-field constraints.
func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	if c.List.PageSize < 0 {
		return fmt.Errorf("%w: list.page_size must not be negative", ErrInvalidConfig)
	}
	if err := c.Fetch.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: fetch: %w", ErrInvalidConfig, err)
	}
	return nil
}

// normalizeMap converts the map[interface{}]interface{} values yaml.v2
// produces for nested mappings so the result can be encoded as JSON.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
