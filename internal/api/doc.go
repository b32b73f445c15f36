// Package api is the HTTP surface of the service: job submission, job
// status, the public feed, health and metrics. Handlers translate requests
// into job store calls and never run generation themselves; the worker pool
// picks submitted jobs up from the queue.
package api
