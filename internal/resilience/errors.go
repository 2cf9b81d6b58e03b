// Package resilience provides the shared error taxonomy and retry engine
// for calls to external collaborators (routing, location resolution) and
// for query-guard rejections.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind classifies an error for retry and surfacing decisions.
type Kind string

const (
	// KindNotFound marks an unresolvable location, station, or route.
	// Surfaced immediately, never retried.
	KindNotFound Kind = "not_found"

	// KindRateLimited marks an upstream 429. Retried with backoff.
	KindRateLimited Kind = "rate_limited"

	// KindServerError marks an upstream 5xx or transport-level failure.
	// Retried with backoff.
	KindServerError Kind = "server_error"

	// KindAuthExpired marks an upstream 401 after the single re-auth
	// attempt has been consumed.
	KindAuthExpired Kind = "auth_expired"

	// KindDataQuality marks a record excluded from aggregation as a
	// likely data error. Logged, never surfaced to callers.
	KindDataQuality Kind = "data_quality"

	// KindInvalidQuery marks a disallowed statement shape rejected
	// before any database call.
	KindInvalidQuery Kind = "invalid_query"

	// KindOther is everything else: fail immediately, no retry.
	KindOther Kind = "other"
)

// Error carries a classification alongside the underlying error.
type Error struct {
	Kind       Kind
	Err        error
	StatusCode int
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an explicit classification.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// FromHTTPStatus classifies an upstream HTTP failure by status code.
func FromHTTPStatus(status int, err error) *Error {
	kind := KindOther
	switch {
	case status == 429:
		kind = KindRateLimited
	case status == 401:
		kind = KindAuthExpired
	case status == 404:
		kind = KindNotFound
	case status >= 500:
		kind = KindServerError
	}
	return &Error{Kind: kind, Err: err, StatusCode: status}
}

// ClassOf returns the classification of err, walking the wrap chain.
// Network-level transport failures classify as ServerError; anything
// unclassified is Other.
func ClassOf(err error) Kind {
	if err == nil {
		return KindOther
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindServerError
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindServerError
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transportPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transportPatterns {
		if strings.Contains(msg, p) {
			return KindServerError
		}
	}

	return KindOther
}

// IsRetryable reports whether err is worth retrying with backoff.
// Only rate limits and server-side failures qualify.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}
