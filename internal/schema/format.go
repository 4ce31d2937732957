package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FormatCompiler compiles schema definitions into collection schemas.
// Each definition format (YAML, protobuf) implements this interface.
type FormatCompiler interface {
	// Compile parses the definition and returns the collection it describes.
	// Returns error if the definition is malformed or invalid.
	Compile(ctx context.Context, schema *Schema) (*Collection, error)
}

// FormatRegistry manages compiler implementations for each definition format.
type FormatRegistry struct {
	mu        sync.RWMutex
	compilers map[Format]FormatCompiler
}

// NewFormatRegistry creates a new format registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		compilers: make(map[Format]FormatCompiler),
	}
}

// RegisterFormat registers the compiler for a definition format.
func (r *FormatRegistry) RegisterFormat(format Format, compiler FormatCompiler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.compilers[format] = compiler
}

// GetCompiler retrieves the compiler for a given format.
// Returns error if the format is not registered.
func (r *FormatRegistry) GetCompiler(format Format) (FormatCompiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	compiler, exists := r.compilers[format]
	if !exists {
		return nil, fmt.Errorf("unsupported schema format %q (supported: %v)", format, r.supportedLocked())
	}
	return compiler, nil
}

// supportedLocked lists registered formats in order. Callers hold r.mu.
func (r *FormatRegistry) supportedLocked() []Format {
	formats := make([]Format, 0, len(r.compilers))
	for format := range r.compilers {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
