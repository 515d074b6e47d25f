// internal/store/errors.go
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoDataAvailable is returned once every source (fresh primary, fresh
// secondary, all cache tiers) has been exhausted.
var ErrNoDataAvailable = errors.New("no data available from any source")

// TransportError is a classified failure talking to a backing store.
type TransportError struct {
	Op        string // e.g. "sheets.fetch"
	Status    int    // HTTP status when known, 0 otherwise
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RetryableError wraps a transient fault: timeouts, 5xx, rate limits.
func RetryableError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, Status: status, Retryable: true, Err: err}
}

// FatalError wraps a fault retrying cannot fix: auth, malformed payloads.
func FatalError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, Status: status, Retryable: false, Err: err}
}

// FromStatus maps an HTTP status to a typed transport error.
func FromStatus(op string, status int, err error) *TransportError {
	switch {
	case status == http.StatusTooManyRequests:
		return RetryableError(op, status, err)
	case status >= 500:
		return RetryableError(op, status, err)
	default:
		return FatalError(op, status, err)
	}
}

// retryableSignatures is the last-resort substring classifier for opaque
// errors whose transport exposes no status code.
var retryableSignatures = []string{
	"remotedisconnected",
	"connection aborted",
	"connection reset",
	"service unavailable",
	"429",
	"bad gateway",
	"gateway timeout",
	"internal server error",
}

// IsRetryable reports whether an error is worth retrying. Typed transport
// errors answer directly; everything else falls back to the signature
// heuristic.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range retryableSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether the error is an upstream rate-limit signal.
func IsRateLimit(err error) bool {
	var te *TransportError
	if errors.As(err, &te) && te.Status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(fmt.Sprint(err))
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota")
}

// IsAuth reports whether the error is an authorization failure. Failing
// over cannot fix these, so they surface to the caller directly.
func IsAuth(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status == http.StatusUnauthorized || te.Status == http.StatusForbidden
	}
	msg := strings.ToLower(fmt.Sprint(err))
	return strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "auth")
}

// DataIntegrityError reports a structurally unusable dataset after an
// otherwise successful fetch: missing required columns, no rows.
type DataIntegrityError struct {
	Dataset string
	Reason  string
}

func (e *DataIntegrityError) Error() string {
	if e.Dataset != "" {
		return fmt.Sprintf("data integrity: %s: %s", e.Dataset, e.Reason)
	}
	return "data integrity: " + e.Reason
}
