package api

import (
	"errors"
	"fmt"
)

// NetworkError reports a failed backend call. Status is the HTTP status code,
// or 0 when the request never produced a response (DNS, refused, timeout).
type NetworkError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Status == 0:
		return fmt.Sprintf("%s %s: transport error: %s", e.Method, e.Path, e.Message)
	default:
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transport reports whether the request failed before a response arrived.
func (e *NetworkError) Transport() bool {
	return e != nil && e.Status == 0
}

// retryable reports whether an idempotent read may be attempted again.
func (e *NetworkError) retryable() bool {
	return e.Status == 0 || e.Status >= 500 || e.Status == 429
}

// IsNetworkError reports whether err is (or wraps) a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
