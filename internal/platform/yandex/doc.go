// Package yandex implements the real image and caption generators on top of
// the Yandex Foundation Models HTTP API.
//
// ArtGenerator drives the asynchronous image protocol: a start call returns an
// operation id, which is then polled until the operation is done or the poll
// deadline passes. GPTGenerator asks the completion endpoint for a caption.
// Both share a Client that authenticates every request, classifies HTTP
// failures as generation.StatusError, and retries transient ones.
package yandex
