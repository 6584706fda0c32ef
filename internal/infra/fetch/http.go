package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/vietddude/livesync/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	maxDetailBytes = 512
)

// Doer performs one HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one logical outbound call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Fetcher performs HTTP calls with bounded retry.
type Fetcher struct {
	client   Doer
	log      *slog.Logger
	monitor  *Monitor
	validate *validator.Validate
	retry    []RetryOption
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// WithRetryOptions applies opts to every Fetch.
func WithRetryOptions(opts ...RetryOption) Option {
	return func(f *Fetcher) {
		f.retry = append(f.retry, opts...)
	}
}

// NewHTTPClient returns the client used when NewFetcher gets nil.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewFetcher creates a fetcher over client (nil uses NewHTTPClient).
func NewFetcher(client Doer, opts ...Option) *Fetcher {
	if client == nil {
		client = NewHTTPClient(defaultTimeout)
	}
	f := &Fetcher{
		client:   client,
		log:      slog.Default(),
		monitor:  NewMonitor(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Monitor returns the fetcher's upstream monitor.
func (f *Fetcher) Monitor() *Monitor {
	return f.monitor
}

// Fetch performs req, retrying transient failures per policy. Non-2xx
// responses are failures; 4xx other than 408/429 are never retried.
func (f *Fetcher) Fetch(ctx context.Context, req Request, policy Policy) (*Response, error) {
	host := hostOf(req.URL)
	opts := append([]RetryOption{
		WithOnRetry(func(a Attempt) {
			metrics.FetchBackoff.WithLabelValues(host).Observe(a.DelayBefore.Seconds())
			f.log.Warn("Fetch attempt failed, retrying",
				"host", host,
				"attempt", a.Number,
				"delay", a.DelayBefore,
				"error", a.Err,
			)
		}),
	}, f.retry...)

	resp, err := Retry(ctx, policy, func(ctx context.Context, attempt int) (*Response, error) {
		resp, err := f.do(ctx, host, req)
		if err != nil {
			return nil, err
		}
		resp.Attempts = attempt
		return resp, nil
	}, opts...)
	if err != nil {
		metrics.FetchOutcomes.WithLabelValues(host, KindOf(err).String()).Inc()
		f.log.Debug("Fetch failed", "host", host, "error", err)
		return nil, err
	}

	metrics.FetchOutcomes.WithLabelValues(host, "success").Inc()
	return resp, nil
}

func (f *Fetcher) do(ctx context.Context, host string, req Request) (*Response, error) {
	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return nil, Permanent(err)
	}

	metrics.FetchAttempts.WithLabelValues(host).Inc()
	start := time.Now()

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.monitor.RecordAttempt(time.Since(start), err)
		return nil, fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	metrics.FetchLatency.WithLabelValues(host).Observe(latency.Seconds())
	if err != nil {
		f.monitor.RecordAttempt(latency, err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		f.monitor.RecordThrottle(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxDetailBytes),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
		f.monitor.RecordAttempt(latency, serr)
		return nil, serr
	}

	f.monitor.RecordAttempt(latency, nil)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// FetchJSON fetches req and decodes the body into T. Decode errors and
// struct validation errors (`validate` tags) are validation failures and are
// not retried.
func FetchJSON[T any](ctx context.Context, f *Fetcher, req Request, policy Policy) (T, error) {
	var out T

	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.Fetch(ctx, req, policy)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, f.invalid(req, resp, fmt.Errorf("decode: %w", err))
	}

	if reflect.Indirect(reflect.ValueOf(&out)).Kind() == reflect.Struct {
		if err := f.validate.Struct(&out); err != nil {
			return out, f.invalid(req, resp, err)
		}
	}
	return out, nil
}

func (f *Fetcher) invalid(req Request, resp *Response, err error) error {
	host := hostOf(req.URL)
	metrics.FetchOutcomes.WithLabelValues(host, KindValidation.String()).Inc()
	f.log.Warn("Response failed validation", "host", host, "error", err)
	return &Error{
		Kind:       KindValidation,
		StatusCode: resp.StatusCode,
		Attempts:   resp.Attempts,
		Detail:     truncate(string(resp.Body), maxDetailBytes),
		Err:        Validation(err),
	}
}

func buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
