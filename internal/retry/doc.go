// Package retry wraps calls to unreliable backends in bounded exponential
// backoff. An Executor classifies each failure as retriable (transport
// timeouts, HTTP 5xx, HTTP 429) or fatal, waits
// min(MaxDelay, BaseDelay*2^(attempt-1)) between attempts, and gives up after
// MaxAttempts or on the first fatal error. Executors hold no per-call state.
package retry
