package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/livesync/internal/infra/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var delays []time.Duration
	f := fetch.NewFetcher(nil, fetch.WithRetryOptions(fetch.WithSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})))
	c := NewClient(f, Config{
		GeocodeURL:  srv.URL + "/v1/search",
		ForecastURL: srv.URL + "/v1/forecast",
		Policy:      fetch.Policy{InitialDelay: 500 * time.Millisecond, MaxAttempts: 3},
	}, nil)
	return c, &delays
}

func TestGeocode_Found(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Berlin" {
			t.Errorf("unexpected name %q", r.URL.Query().Get("name"))
		}
		w.Write([]byte(`{"results":[{"id":2950159,"name":"Berlin","latitude":52.52437,"longitude":13.41053,"country":"Germany","timezone":"Europe/Berlin"}],"generationtime_ms":0.9}`))
	})

	loc, err := c.Geocode(context.Background(), " Berlin ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Name != "Berlin" || loc.Country != "Germany" {
		t.Errorf("unexpected location %+v", loc)
	}
}

func TestGeocode_NotFound(t *testing.T) {
	var calls atomic.Int32
	c, delays := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"generationtime_ms":0.4}`))
	})

	_, err := c.Geocode(context.Background(), "Atlantis")
	if !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
	if errors.Is(err, fetch.ErrTransient) || errors.Is(err, fetch.ErrPermanent) {
		t.Errorf("not found should not be a request failure: %v", err)
	}
	if calls.Load() != 1 || len(*delays) != 0 {
		t.Errorf("expected exactly one request and no waits, got %d requests, waits %v", calls.Load(), *delays)
	}
}

func TestGeocode_EmptyName(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := c.Geocode(context.Background(), "  "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestGeocode_InvalidCoordinates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"name":"Nowhere","latitude":123.0,"longitude":13.4}]}`))
	})

	_, err := c.Geocode(context.Background(), "Nowhere")
	if !errors.Is(err, fetch.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestGeocode_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	c, delays := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":[{"name":"Oslo","latitude":59.91,"longitude":10.75}]}`))
	})

	loc, err := c.Geocode(context.Background(), "Oslo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Name != "Oslo" {
		t.Errorf("expected Oslo, got %+v", loc)
	}
	if len(*delays) != 1 || (*delays)[0] != 500*time.Millisecond {
		t.Errorf("expected one 500ms wait, got %v", *delays)
	}
}

func TestLookup(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/search":
			w.Write([]byte(`{"results":[{"name":"Lisbon","latitude":38.72,"longitude":-9.13}]}`))
		case "/v1/forecast":
			if r.URL.Query().Get("latitude") != "38.7200" {
				t.Errorf("unexpected latitude %q", r.URL.Query().Get("latitude"))
			}
			w.Write([]byte(`{"latitude":38.72,"longitude":-9.13,"current":{"time":"2026-10-19T12:00","temperature_2m":19.4,"wind_speed_10m":11.2,"weather_code":2,"precipitation":0}}`))
		default:
			http.NotFound(w, r)
		}
	})

	loc, cond, err := c.Lookup(context.Background(), "Lisbon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Name != "Lisbon" {
		t.Errorf("unexpected location %+v", loc)
	}
	if cond.Temperature != 19.4 || Describe(cond.WeatherCode) != "partly cloudy" {
		t.Errorf("unexpected conditions %+v", cond)
	}
}

func TestCurrent_MissingBlock(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latitude":38.72,"longitude":-9.13}`))
	})

	_, err := c.Current(context.Background(), Location{Name: "Lisbon", Latitude: 38.72, Longitude: -9.13})
	if !errors.Is(err, fetch.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
