// Package weather resolves place names to coordinates and reads current
// conditions from the Open-Meteo APIs through a retrying fetcher.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/vietddude/livesync/internal/infra/fetch"
)

const (
	DefaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

var (
	// ErrLocationNotFound is returned when geocoding finds no match. It is a
	// normal outcome, not a failed request.
	ErrLocationNotFound = errors.New("location not found")

	ErrEmptyName = errors.New("location name is empty")
)

// Location is a geocoded place.
type Location struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Country   string  `json:"country,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Conditions are the current readings at a location.
type Conditions struct {
	Time          string  `json:"time" validate:"required"`
	Temperature   float64 `json:"temperature_2m" validate:"gte=-100,lte=100"`
	WindSpeed     float64 `json:"wind_speed_10m" validate:"gte=0"`
	WeatherCode   int     `json:"weather_code" validate:"gte=0,lte=99"`
	Precipitation float64 `json:"precipitation" validate:"gte=0"`
}

type geocodeResponse struct {
	Results []Location `json:"results" validate:"dive"`
}

type forecastResponse struct {
	Latitude  float64     `json:"latitude" validate:"latitude"`
	Longitude float64     `json:"longitude" validate:"longitude"`
	Current   *Conditions `json:"current" validate:"required"`
}

// Config holds endpoints and the retry policy for the client.
type Config struct {
	GeocodeURL  string
	ForecastURL string
	Language    string
	Policy      fetch.Policy
}

// Client queries Open-Meteo.
type Client struct {
	fetcher *fetch.Fetcher
	cfg     Config
	log     *slog.Logger
}

// NewClient creates a client. Empty config fields fall back to the public
// endpoints and fetch.DefaultPolicy.
func NewClient(f *fetch.Fetcher, cfg Config, log *slog.Logger) *Client {
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = DefaultGeocodeURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = fetch.DefaultPolicy
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{fetcher: f, cfg: cfg, log: log}
}

// Geocode returns the best match for name. An empty result set yields
// ErrLocationNotFound after a single request.
func (c *Client) Geocode(ctx context.Context, name string) (Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Location{}, ErrEmptyName
	}

	resp, err := fetch.FetchJSON[geocodeResponse](ctx, c.fetcher, fetch.Request{
		URL: c.cfg.GeocodeURL,
		Query: url.Values{
			"name":     {name},
			"count":    {"1"},
			"language": {c.cfg.Language},
			"format":   {"json"},
		},
	}, c.cfg.Policy)
	if err != nil {
		return Location{}, fmt.Errorf("geocode %q: %w", name, err)
	}

	if len(resp.Results) == 0 {
		c.log.Debug("No geocoding match", "name", name)
		return Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
	}
	return resp.Results[0], nil
}

// Current returns current conditions at loc.
func (c *Client) Current(ctx context.Context, loc Location) (Conditions, error) {
	resp, err := fetch.FetchJSON[forecastResponse](ctx, c.fetcher, fetch.Request{
		URL: c.cfg.ForecastURL,
		Query: url.Values{
			"latitude":  {strconv.FormatFloat(loc.Latitude, 'f', 4, 64)},
			"longitude": {strconv.FormatFloat(loc.Longitude, 'f', 4, 64)},
			"current":   {"temperature_2m,wind_speed_10m,weather_code,precipitation"},
		},
	}, c.cfg.Policy)
	if err != nil {
		return Conditions{}, fmt.Errorf("current weather for %s: %w", loc.Name, err)
	}
	return *resp.Current, nil
}

// Lookup geocodes name and returns its current conditions.
func (c *Client) Lookup(ctx context.Context, name string) (Location, Conditions, error) {
	loc, err := c.Geocode(ctx, name)
	if err != nil {
		return Location{}, Conditions{}, err
	}
	cond, err := c.Current(ctx, loc)
	if err != nil {
		return loc, Conditions{}, err
	}
	return loc, cond, nil
}

// Describe maps a WMO weather code to a short label.
func Describe(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
