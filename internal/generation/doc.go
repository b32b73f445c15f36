// Package generation defines the capability interfaces the pipeline uses to
// turn a prompt into an image and a caption: ImageGenerator and
// CaptionGenerator. Concrete implementations live elsewhere (deterministic
// stubs here, HTTP-backed clients under internal/platform); the worker only
// ever sees the interfaces, bundled per job as a Pair.
//
// The package also owns the error taxonomy shared by every implementation, so
// the retry executor and the worker can classify failures without knowing
// which backend produced them.
package generation
