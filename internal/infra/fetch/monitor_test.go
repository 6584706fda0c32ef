package fetch

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name   string
		record func(m *Monitor)
		expect HealthStatus
	}{
		{
			name:   "fresh",
			record: func(m *Monitor) {},
			expect: StatusHealthy,
		},
		{
			name: "throttled",
			record: func(m *Monitor) {
				m.RecordThrottle(http.StatusTooManyRequests)
			},
			expect: StatusThrottled,
		},
		{
			name: "blocked wins over throttled",
			record: func(m *Monitor) {
				m.RecordThrottle(http.StatusTooManyRequests)
				m.RecordThrottle(http.StatusForbidden)
			},
			expect: StatusBlocked,
		},
		{
			name: "degraded",
			record: func(m *Monitor) {
				for i := 0; i < 11; i++ {
					m.RecordAttempt(4*time.Second, nil)
				}
			},
			expect: StatusDegraded,
		},
		{
			name: "few slow samples stay healthy",
			record: func(m *Monitor) {
				for i := 0; i < 5; i++ {
					m.RecordAttempt(4*time.Second, nil)
				}
			},
			expect: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			tt.record(m)
			if got := m.Status(); got != tt.expect {
				t.Errorf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestMonitor_ThrottleExpires(t *testing.T) {
	m := NewMonitor()
	m.throttleWindow = time.Millisecond
	m.RecordThrottle(http.StatusTooManyRequests)
	time.Sleep(5 * time.Millisecond)

	if got := m.Status(); got != StatusHealthy {
		t.Errorf("expected throttle to expire, got %s", got)
	}
}

func TestMonitor_Stats(t *testing.T) {
	m := NewMonitor()
	m.RecordAttempt(100*time.Millisecond, nil)
	m.RecordAttempt(300*time.Millisecond, errors.New("boom"))

	stats := m.Stats()
	if stats.Requests != 2 || stats.Failures != 1 {
		t.Errorf("expected 2 requests / 1 failure, got %+v", stats)
	}
	if stats.AverageLatency != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", stats.AverageLatency)
	}
}
