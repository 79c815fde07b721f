package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports every missing or malformed request field at once.
// Static schema validation is the only stage that aggregates failures; all
// other stages fail fast with a single GrantError.
type ValidationError struct {
	Code        string            `json:"error"`
	Description string            `json:"error_description"`
	Fields      map[string]string `json:"invalid_fields"`
}

// NewValidationError builds a validation_failed error from per-field
// messages.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{
		Code:        ValidationFailed,
		Description: "The request failed validation.",
		Fields:      fields,
	}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return fmt.Sprintf("%s: %s", e.Code, strings.Join(names, ", "))
}

// Has reports whether the named field failed validation.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}
