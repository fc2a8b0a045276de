package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Transport errors.
var (
	// ErrTransport is matched by every error returned from a Fetcher: network
	// failures, timeouts and non-success status codes.
	ErrTransport = errors.New("transport failure")

	// ErrBodyTooLarge is returned, together with ErrTransport, when a
	// response body exceeds the size limit. It is never retried.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrInvalidProxyAddress is returned when the proxy setting cannot be
	// parsed. Accepted forms are "host:port" and "socks5://[user:pass@]host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://host:port")
)

// StatusError reports a response with a non-2xx status code.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code received.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap makes StatusError match ErrTransport.
func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// Retryable reports whether the status may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a transport failure worth retrying.
// Client errors (4xx other than 429), oversized bodies and cancellation
// are final.
func IsRetryable(err error) bool {
	if err == nil || !errors.Is(err, ErrTransport) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
