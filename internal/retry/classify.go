package retry

import (
	"context"
	"errors"
	"net"

	"github.com/snaptrace/snaptrace-api/internal/generation"
)

// IsRetriable reports whether err is a transient failure worth another attempt.
//
// Retriable: HTTP 5xx and 429 (generation.StatusError), transport timeouts
// (net.Error.Timeout), and a per-request deadline expiring.
// Everything else, including cancellation, is fatal.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *generation.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
