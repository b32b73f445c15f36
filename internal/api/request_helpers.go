package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/domain"
)

const (
	// maxFieldBytes bounds a single non-file form field.
	maxFieldBytes = 64 << 10

	// formOverheadBytes is allowed on top of the file limit for boundaries,
	// part headers and the text fields.
	formOverheadBytes = 1 << 20
)

// acceptedImageTypes are the media types accepted for the uploaded photo.
var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// uploadForm is the parsed multipart body of a job submission. Coordinate
// ranges are checked by domain.JobRequest.Validate.
type uploadForm struct {
	Prompt   string `validate:"required"`
	Lat      *float64
	Lon      *float64
	DeviceID string `validate:"omitempty,max=128"`
}

func (f uploadForm) jobRequest() domain.JobRequest {
	return domain.JobRequest{
		Prompt:   f.Prompt,
		Lat:      f.Lat,
		Lon:      f.Lon,
		DeviceID: f.DeviceID,
	}
}

// parseUpload streams the multipart body of r. The file part is checked for
// media type and size and then discarded. A file error stops parsing; a
// missing file is reported before any form field error.
func parseUpload(w http.ResponseWriter, r *http.Request, maxFileBytes int64) (uploadForm, error) {
	var form uploadForm

	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+formOverheadBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		return form, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var fileSeen bool
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return form, bodyReadError(err)
		}

		if part.FormName() == "file" || part.FileName() != "" {
			fileSeen = true
			err = checkImagePart(part, maxFileBytes)
		} else {
			err = readFormField(part, &form)
		}
		_ = part.Close()
		if err != nil {
			return form, err
		}
	}

	if !fileSeen {
		return form, ErrMissingFile
	}

	if err := shared.ValidateRequest(form); err != nil {
		if shared.FirstInvalidField(err) == "Prompt" {
			return form, ErrMissingPrompt
		}
		return form, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := form.jobRequest().Validate(); err != nil {
		return form, err
	}
	return form, nil
}

// checkImagePart validates the declared media type and reads at most
// maxBytes+1 bytes of the part to detect oversized files.
func checkImagePart(part *multipart.Part, maxBytes int64) error {
	mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if err != nil || !acceptedImageTypes[strings.ToLower(mediaType)] {
		return ErrUnsupportedMediaType
	}

	n, err := io.Copy(io.Discard, io.LimitReader(part, maxBytes+1))
	if err != nil {
		return bodyReadError(err)
	}
	if n > maxBytes {
		return ErrFileTooLarge
	}
	return nil
}

// readFormField stores a known text field on form. Unknown fields are
// ignored, as are coordinates that do not parse as numbers.
func readFormField(part *multipart.Part, form *uploadForm) error {
	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return bodyReadError(err)
	}
	value := strings.TrimSpace(string(raw))

	switch part.FormName() {
	case "prompt":
		form.Prompt = value
	case "lat":
		form.Lat = parseCoordinate(value)
	case "lon":
		form.Lon = parseCoordinate(value)
	case "deviceId":
		form.DeviceID = value
	}
	return nil
}

func parseCoordinate(value string) *float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func bodyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrFileTooLarge
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

// getPathParam extracts a required path parameter.
func getPathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	return value, nil
}

// parseLimit reads the limit query parameter. Missing, unparsable or
// non-positive values give def; values above max are capped.
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
