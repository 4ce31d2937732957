package aggregation

import (
	"errors"
	"fmt"

	"github.com/aevon-lab/docagg/internal/schema"
)

var (
	// ErrInvalidSpecification is returned when a spec's parameters cannot
	// be compiled, for instance when neither a field nor an expression is
	// given.
	ErrInvalidSpecification = errors.New("invalid aggregation specification")

	// ErrFieldNotFound is returned when a field path does not resolve
	// against the collection schema.
	ErrFieldNotFound = schema.ErrFieldNotFound
)

// ExecutionError wraps a failure reported by the query engine while running
// a compiled pipeline.
type ExecutionError struct {
	Collection string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("aggregation on collection %q failed: %v", e.Collection, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpecification, fmt.Sprintf(format, args...))
}
