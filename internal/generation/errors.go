package generation

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by generator implementations
var (
	// ErrInvalidResponse is returned when a backend response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from generation backend")

	// ErrEmptyImage is returned when an image operation reports completion but carries no image
	ErrEmptyImage = errors.New("image operation completed without an image")

	// ErrPollTimeout is returned when a long-running image operation does not finish before its deadline
	ErrPollTimeout = errors.New("image operation did not complete before the poll deadline")

	// ErrContentBlocked is returned when the backend refuses to produce content for safety reasons
	ErrContentBlocked = errors.New("content blocked by generation backend")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// StatusError reports a non-2xx HTTP response from a generation backend.
type StatusError struct {
	// Action names the call that failed, e.g. "art start"
	Action string

	// Code is the HTTP status code
	Code int

	// Body is a truncated copy of the response body, for diagnostics
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Action, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Action, e.Code, http.StatusText(e.Code), e.Body)
}

// Temporary reports whether the status is one a caller may retry:
// any 5xx, or 429 Too Many Requests.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}
