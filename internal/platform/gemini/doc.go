// Package gemini provides a generation.CaptionGenerator backed by Google's
// Gemini API.
//
// It is the alternative caption backend, selected with
// generation.caption_backend=gemini. Images produced by the image stage
// arrive as data URIs and are sent to the model as inline image parts, so
// the caption is grounded on the actual picture. Calls run through the shared
// retry executor; Gemini API errors are mapped onto generation.StatusError so
// the usual 5xx/429 classification applies.
package gemini
