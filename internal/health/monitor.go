package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/livesync/internal/infra/fetch"
)

const defaultCacheTTL = 10 * time.Second

// CheckFunc reports the health of one component.
type CheckFunc func(ctx context.Context) ComponentHealth

// Monitor aggregates health status from registered checks.
type Monitor struct {
	mu         sync.Mutex
	checks     map[string]CheckFunc
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		checks:   make(map[string]CheckFunc),
		cacheTTL: defaultCacheTTL,
	}
}

// AddCheck registers fn under name, replacing any previous check.
func (m *Monitor) AddCheck(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
	m.lastReport = nil
}

// CheckHealth runs every check. Results are cached briefly so probes do not
// hammer dependencies.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(names)),
	}
	for _, name := range names {
		h := m.checks[name](ctx)
		h.Name = name
		if h.Status == "" {
			h.Status = StatusHealthy
		}
		report.Components[name] = h
		report.SystemStatus = worse(report.SystemStatus, h.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

// PingCheck marks a component critical when ping fails.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) ComponentHealth {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusCritical, Error: err.Error()}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}

// poolSaturated is the usage percentage at which a pool is degraded.
const poolSaturated = 90.0

// PoolCheck pings a connection pool and reports its usage. A nearly
// exhausted pool is degraded.
func PoolCheck(ping func(ctx context.Context) error, usage func() float64) CheckFunc {
	pingCheck := PingCheck(ping)
	return func(ctx context.Context) ComponentHealth {
		h := pingCheck(ctx)
		u := usage()
		h.Details = map[string]float64{"pool_usage_percent": u}
		if h.Status == StatusHealthy && u >= poolSaturated {
			h.Status = StatusDegraded
		}
		return h
	}
}

// FetchCheck reports an upstream as seen by a fetch monitor. A throttled or
// slow upstream is degraded; a blocked one is critical.
func FetchCheck(m *fetch.Monitor) CheckFunc {
	return func(ctx context.Context) ComponentHealth {
		stats := m.Stats()
		h := ComponentHealth{Status: StatusHealthy, Details: stats}
		switch stats.Status {
		case fetch.StatusThrottled, fetch.StatusDegraded:
			h.Status = StatusDegraded
		case fetch.StatusBlocked:
			h.Status = StatusCritical
		}
		return h
	}
}

// GaugeCheck reports a value as details without affecting status.
func GaugeCheck(value func() any) CheckFunc {
	return func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusHealthy, Details: value()}
	}
}
