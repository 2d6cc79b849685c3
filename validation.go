package auth

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// FormatValidationErrorToMap flattens ozzo field errors into field -> message
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			if ferr == nil {
				continue
			}
			out[field] = ferr.Error()
		}
		return out
	}

	out["_"] = err.Error()
	return out
}

// NewValidationError converts an ozzo validation error into ErrValidation
// carrying per field messages as metadata. A nil input returns nil.
func NewValidationError(message string, err error) error {
	if err == nil {
		return nil
	}

	fields := FormatValidationErrorToMap(err)
	if message == "" {
		message = describeFields(fields)
	}

	return WithMessage(ErrValidation, message, map[string]any{
		"fields": fields,
	})
}

func describeFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ErrValidation.Message
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}
	return strings.Join(parts, "; ")
}
