package store

import "errors"

// Common store errors.
var (
	// ErrNotFound is returned when a requested job does not exist in the store.
	ErrNotFound = errors.New("job not found")

	// ErrNotClaimable is returned by ClaimJob when the job is not queued.
	ErrNotClaimable = errors.New("job is not queued")
	// ErrInvalidGenerators is returned when a generator pair is missing an implementation.
	ErrInvalidGenerators = errors.New("generator pair must provide both image and caption generators")
)
