// Package domain contains the core entities of the generation pipeline: jobs,
// their lifecycle statuses, and the feed items a finished job publishes. It is
// independent of the store, the workers, and any generation backend.
package domain
