// Package store holds the volatile state of the generation pipeline: job
// statuses, published feed items, the FIFO work queue and the generator
// bindings captured when a job is enqueued.
//
// Everything lives in process memory and is lost on restart. All operations
// are safe for concurrent use by the HTTP handlers and any number of workers.
package store
