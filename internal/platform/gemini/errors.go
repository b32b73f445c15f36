package gemini

import (
	"errors"

	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/redact"
	"google.golang.org/genai"
)

const maxErrorMessageBytes = 256

// mapError converts a Gemini API error into a *generation.StatusError.
// Other errors are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(*apiErrPtr)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr)
	}

	return err
}

func statusError(apiErr genai.APIError) *generation.StatusError {
	return &generation.StatusError{
		Action: actionCaption,
		Code:   apiErr.Code,
		Body:   redact.Truncate(redact.String(apiErr.Message), maxErrorMessageBytes),
	}
}
