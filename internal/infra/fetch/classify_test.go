package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect Kind
	}{
		{"429", &StatusError{StatusCode: 429}, KindTransient},
		{"408", &StatusError{StatusCode: 408}, KindTransient},
		{"500", &StatusError{StatusCode: 500}, KindTransient},
		{"503", &StatusError{StatusCode: 503}, KindTransient},
		{"404", &StatusError{StatusCode: 404}, KindPermanent},
		{"400", &StatusError{StatusCode: 400}, KindPermanent},
		{"403 plain", &StatusError{StatusCode: 403}, KindPermanent},
		{"400 with throttle body", &StatusError{StatusCode: 400, Body: "Daily request count exceeded"}, KindTransient},
		{"wrapped status", fmt.Errorf("geocode: %w", &StatusError{StatusCode: 502}), KindTransient},
		{"validation", Validation(errors.New("bad json")), KindValidation},
		{"already terminal", &Error{Kind: KindPermanent}, KindPermanent},
		{"canceled", context.Canceled, KindPermanent},
		{"deadline", fmt.Errorf("http call: %w", context.DeadlineExceeded), KindTransient},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindTransient},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), KindTransient},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), KindTransient},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad"), KindPermanent},
		{"grpc not found", status.Error(codes.NotFound, "missing"), KindPermanent},
		{"json-rpc invalid request", errors.New("Invalid JSON-RPC request -32600"), KindPermanent},
		{"json-rpc parse error", errors.New("Parse error -32700"), KindPermanent},
		{"connection reset", errors.New("connection reset by peer"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expect {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestRetryHint(t *testing.T) {
	if got := RetryHint(&StatusError{StatusCode: 429, RetryAfter: 3 * time.Second}); got != 3*time.Second {
		t.Errorf("expected 3s from Retry-After, got %v", got)
	}

	st, err := status.New(codes.ResourceExhausted, "slow down").WithDetails(&errdetails.RetryInfo{
		RetryDelay: durationpb.New(2 * time.Second),
	})
	if err != nil {
		t.Fatalf("WithDetails failed: %v", err)
	}
	if got := RetryHint(st.Err()); got != 2*time.Second {
		t.Errorf("expected 2s from RetryInfo, got %v", got)
	}

	if got := RetryHint(errors.New("plain")); got != 0 {
		t.Errorf("expected no hint, got %v", got)
	}
}

func TestIsThrottleMessage(t *testing.T) {
	if !IsThrottleMessage("Project rate limit exceeded for key") {
		t.Error("expected throttle phrase to match")
	}
	if IsThrottleMessage("not found") {
		t.Error("expected plain message not to match")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if got := parseRetryAfter("7", now); got != 7*time.Second {
		t.Errorf("expected 7s, got %v", got)
	}
	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	if got := parseRetryAfter(date, now); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
	if got := parseRetryAfter("soon", now); got != 0 {
		t.Errorf("expected 0 for garbage, got %v", got)
	}
}
