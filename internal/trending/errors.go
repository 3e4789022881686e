package trending

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a fetch exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrCancelled is returned when a fetch was superseded or the
	// coordinator was disposed. It is never surfaced to the view.
	ErrCancelled = errors.New("request cancelled")

	// ErrLocationDenied is returned by a Locator that was refused or failed.
	ErrLocationDenied = errors.New("location denied")

	// ErrLocationUnavailable is returned by a Locator with no capability to
	// determine a position.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrServiceUnavailable is returned when the circuit breaker rejects a
	// fetch without contacting the backend.
	ErrServiceUnavailable = errors.New("trending service unavailable")
)

// NetworkError reports a failed fetch: transport failure or a malformed
// response body.
type NetworkError struct {
	Msg string
	Err error
}

func (e *NetworkError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "network error"
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response from the trending endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trending request failed (%d)", e.StatusCode)
}

// IsNetworkError reports whether err is a recoverable fetch failure. Timeouts
// and non-2xx statuses count; cancellations do not.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}
	var ne *NetworkError
	var se *StatusError
	return errors.As(err, &ne) || errors.As(err, &se) ||
		errors.Is(err, ErrTimeout) || errors.Is(err, ErrServiceUnavailable)
}

// errorMessage converts a fetch error into the text shown to users.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	var ne *NetworkError
	switch {
	case errors.Is(err, ErrTimeout):
		return "Request timed out"
	case errors.Is(err, ErrServiceUnavailable):
		return "Trending service unavailable"
	case errors.As(err, &se):
		return fmt.Sprintf("Trending request failed (%d)", se.StatusCode)
	case errors.As(err, &ne):
		return "Network error"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Failed to load trending videos"
}
