package engine

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by snapshot reads before the first successful refresh.
var ErrNotLoaded = errors.New("data not loaded yet")

// NetworkError reports a failed upstream exchange: transport failure,
// timeout, cancellation, a non-2xx status, or an open circuit breaker.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request error: %s returned %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request error: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports an upstream body that is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("JSON parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// errorKind labels an error for metrics.
func errorKind(err error) string {
	var netErr *NetworkError
	var parseErr *ParseError
	switch {
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &parseErr):
		return "parse_error"
	default:
		return "error"
	}
}
