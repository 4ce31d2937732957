package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound is returned when a schema is not found in the repository.
	ErrNotFound      = errors.New("schema not found")
	ErrAlreadyExists = errors.New("schema already exists")

	// ErrFieldNotFound is returned when a path does not resolve to a declared field.
	ErrFieldNotFound = errors.New("field not found")
)

// FieldNotFoundError reports the path that failed to resolve.
type FieldNotFoundError struct {
	Collection string
	Path       string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%s: collection %q has no field %q", ErrFieldNotFound, e.Collection, e.Path)
}

func (e *FieldNotFoundError) Unwrap() error {
	return ErrFieldNotFound
}

// ValidationError represents a malformed schema definition.
type ValidationError struct {
	Collection string `json:"collection"`
	Version    int    `json:"version"`
	Format     string `json:"format,omitempty"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Type       string `json:"type,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s (collection %s v%d)",
			e.Field, e.Message, e.Collection, e.Version)
	}
	return fmt.Sprintf("%s (collection %s v%d)", e.Message, e.Collection, e.Version)
}

// MultiValidationError aggregates multiple validation errors.
type MultiValidationError struct {
	Errors []*ValidationError
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidationDetailer surfaces structured validation details for API error responses.
type ValidationDetailer interface {
	Details() map[string]interface{}
}

// Details returns the structured fields from this single validation error.
func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if e.Field != "" {
		d["field"] = e.Field
	}
	if e.Type != "" {
		d["type"] = e.Type
	}
	return d
}

// Details aggregates the failed field names from all child errors.
func (e *MultiValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	var fields []string
	for _, ve := range e.Errors {
		if ve.Field != "" {
			fields = append(fields, ve.Field)
		}
	}
	if len(fields) > 0 {
		d["fields"] = fields
	}
	return d
}

// NewUnsupportedTypeError creates an error for a field declared with an unknown type.
func NewUnsupportedTypeError(collection string, version int, field, typ string) *ValidationError {
	return &ValidationError{
		Collection: collection,
		Version:    version,
		Message:    fmt.Sprintf("unsupported type %q", typ),
		Field:      field,
		Type:       typ,
	}
}
