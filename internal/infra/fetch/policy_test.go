package fetch

import (
	"errors"
	"testing"
	"time"
)

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{InitialDelay: 500 * time.Millisecond, MaxAttempts: 5, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_BackoffDefaultsMultiplier(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxAttempts: 3}
	if got := p.Backoff(2); got != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", got)
	}
}

func TestPolicy_BackoffCapped(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxAttempts: 20, MaxDelay: 5 * time.Second}
	if got := p.Backoff(10); got != 5*time.Second {
		t.Errorf("expected cap of 5s, got %v", got)
	}
}

func TestPolicy_BackoffJitter(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxAttempts: 3, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		got := p.Backoff(1)
		if got < time.Second || got > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1s, 1.5s]", got)
		}
	}
}

func TestPolicy_Schedule(t *testing.T) {
	got := DefaultPolicy.Schedule()
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("schedule[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name  string
		p     Policy
		valid bool
	}{
		{"default", DefaultPolicy, true},
		{"single attempt no delay", Policy{MaxAttempts: 1}, true},
		{"zero attempts", Policy{MaxAttempts: 0}, false},
		{"negative delay", Policy{MaxAttempts: 1, InitialDelay: -time.Second}, false},
		{"shrinking multiplier", Policy{MaxAttempts: 2, Multiplier: 0.5}, false},
		{"jitter above one", Policy{MaxAttempts: 2, Jitter: 1.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}
