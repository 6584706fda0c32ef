package fetch

import (
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the observed state of an upstream.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"   // upstream is working normally
	StatusDegraded  HealthStatus = "degraded"  // upstream is slow but working
	StatusThrottled HealthStatus = "throttled" // upstream is rate limiting
	StatusBlocked   HealthStatus = "blocked"   // upstream refused this client
)

// MonitorStats holds monitoring statistics for a fetcher.
type MonitorStats struct {
	Status           HealthStatus  `json:"status"`
	AverageLatency   time.Duration `json:"average_latency"`
	Requests         int           `json:"requests"`
	Failures         int           `json:"failures"`
	ThrottleCount429 int           `json:"throttle_count_429"`
	ThrottleCount403 int           `json:"throttle_count_403"`
	LastThrottleAt   time.Time     `json:"last_throttle_at,omitzero"`
}

// Monitor tracks attempt latency and throttling for one fetcher.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	requests         int
	failures         int
	status429Count   int
	status403Count   int
	lastThrottleTime time.Time
	throttleWindow   time.Duration

	slowResponseThreshold time.Duration
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		throttleWindow:        time.Minute,
		slowResponseThreshold: 3 * time.Second,
	}
}

// RecordAttempt records one finished attempt.
func (m *Monitor) RecordAttempt(latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	if err != nil {
		m.failures++
	}

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// RecordThrottle records a rate limiting or blocking response.
func (m *Monitor) RecordThrottle(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastThrottleTime = time.Now()
	switch statusCode {
	case http.StatusTooManyRequests:
		m.status429Count++
	case http.StatusForbidden:
		m.status403Count++
	}
}

// Status returns the current status of the upstream.
func (m *Monitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() HealthStatus {
	recent := !m.lastThrottleTime.IsZero() && time.Since(m.lastThrottleTime) < m.throttleWindow

	if m.status403Count > 0 && recent {
		return StatusBlocked
	}
	if m.status429Count > 0 && recent {
		return StatusThrottled
	}
	if len(m.recentLatencies) > 10 && m.averageLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

func (m *Monitor) averageLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MonitorStats{
		Status:           m.statusLocked(),
		AverageLatency:   m.averageLocked(),
		Requests:         m.requests,
		Failures:         m.failures,
		ThrottleCount429: m.status429Count,
		ThrottleCount403: m.status403Count,
		LastThrottleAt:   m.lastThrottleTime,
	}
}
