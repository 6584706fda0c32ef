package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// throttlePatterns are provider messages that signal rate limiting even when
// the status code does not.
var throttlePatterns = []string{
	"rate limit exceeded",
	"too many requests",
	"daily request count exceeded",
	"project rate limit",
	"monthly quota exceeded",
	"quota exceeded",
}

// IsThrottleMessage reports whether msg contains a known rate-limit phrase.
func IsThrottleMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range throttlePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Classify determines whether err is worth retrying.
func Classify(err error) Kind {
	if err == nil {
		return 0
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se)
	}

	if st, ok := status.FromError(err); ok {
		return classifyCode(st.Code())
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	s := err.Error()

	// JSON-RPC malformed request codes
	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return KindPermanent
	}

	// Default to transient (connection-level failures)
	return KindTransient
}

func classifyStatus(se *StatusError) Kind {
	switch {
	case se.StatusCode == http.StatusTooManyRequests,
		se.StatusCode == http.StatusRequestTimeout,
		se.StatusCode == http.StatusTooEarly,
		se.StatusCode >= 500:
		return KindTransient
	case IsThrottleMessage(se.Body):
		return KindTransient
	default:
		return KindPermanent
	}
}

func classifyCode(code codes.Code) Kind {
	switch code {
	case codes.OK:
		return 0
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return KindTransient
	default:
		return KindPermanent
	}
}

// RetryHint returns the server-requested wait carried by err, if any:
// a Retry-After header or a gRPC RetryInfo detail.
func RetryHint(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return 0
	}
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
			return ri.GetRetryDelay().AsDuration()
		}
	}
	return 0
}

// statusCodeOf returns the HTTP status carried by err, or 0.
func statusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
