// Package task runs generation jobs in the background. A WorkerPool takes job
// ids from the store's queue, generates an image and a caption for each, and
// publishes the result to the feed, so uploads never block on the generation
// backends.
//
// Stopping the pool returns in-flight jobs to the queue instead of failing them.
package task
