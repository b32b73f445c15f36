package api

import (
	"errors"
	"net/http"

	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/domain"
	"github.com/snaptrace/snaptrace-api/internal/store"
)

// Error codes returned in the "error" field of error responses.
const (
	CodeMissingFile          = "missing_file"
	CodeMissingPrompt        = "missing_prompt"
	CodeFileTooLarge         = "file_too_large"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeInvalidLocation      = "invalid_location"
	CodeInvalidRequest       = "invalid_request"
	CodeNotFound             = "not_found"
	CodeInternal             = "internal_error"
)

// Upload validation errors.
var (
	ErrMissingFile          = errors.New("multipart request has no file part")
	ErrMissingPrompt        = errors.New("prompt is required")
	ErrFileTooLarge         = errors.New("uploaded file exceeds the size limit")
	ErrUnsupportedMediaType = errors.New("uploaded file is not a JPEG or PNG image")
	ErrInvalidRequest       = errors.New("malformed request")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. Unknown
// errors are 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType

	case errors.Is(err, ErrMissingFile),
		errors.Is(err, ErrMissingPrompt),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidLocation):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the stable code reported to clients for err. Unknown
// errors never leak their message.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingFile):
		return CodeMissingFile
	case errors.Is(err, ErrMissingPrompt):
		return CodeMissingPrompt
	case errors.Is(err, ErrFileTooLarge):
		return CodeFileTooLarge
	case errors.Is(err, ErrUnsupportedMediaType):
		return CodeUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidLocation):
		return CodeInvalidLocation
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// HandleAPIError writes the error response for err.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), ErrorCode(err), err)
}
