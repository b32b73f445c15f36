// Package metrics keeps in-process counters for calls to the generation
// backends: attempts, successes, and cumulative duration per operation class.
// A Registry is constructed explicitly and shared by every client and worker
// that needs it; there is no package-level default.
package metrics
