package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrInvalidJobStatus is returned when a status string is not a known job status.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidTransition is returned when a job status change is not permitted
	// by the lifecycle.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidLocation is returned when coordinates are outside their valid range.
	ErrInvalidLocation = errors.New("invalid location")
)
