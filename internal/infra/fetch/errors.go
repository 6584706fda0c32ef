package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a failure.
type Kind int

const (
	// KindTransient may succeed on retry (network, timeout, 5xx, rate limit).
	KindTransient Kind = iota + 1
	// KindPermanent will not change on retry (4xx, malformed request).
	KindPermanent
	// KindValidation means a response arrived but had the wrong shape.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	// ErrTransient matches terminal errors after retries were exhausted.
	ErrTransient = errors.New("transient network failure")

	// ErrPermanent matches failures that were never retried.
	ErrPermanent = errors.New("permanent request failure")

	// ErrValidation matches responses that did not have the expected shape.
	ErrValidation = errors.New("response validation failure")
)

// Error is the terminal outcome of a failed fetch.
type Error struct {
	Kind       Kind
	StatusCode int // last HTTP status, 0 if none
	Attempts   int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" failure")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrPermanent:
		return e.Kind == KindPermanent
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// KindOf returns the kind of a terminal fetch error, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// ValidationError wraps a response that could not be decoded or validated.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid response: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation marks err as a validation failure.
func Validation(err error) error {
	return &ValidationError{Err: err}
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	return &Error{Kind: KindPermanent, Err: err}
}
