package shared

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Global validator instance for reuse
var validate = validator.New()

// ValidateRequest validates v against its struct tags.
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// FirstInvalidField returns the struct field name of the first failed
// validation rule in err, or "" if err is not a validation error.
func FirstInvalidField(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return ""
	}
	return validationErrs[0].StructField()
}
