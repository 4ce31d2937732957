package yaml

import (
	"context"
	"fmt"

	"github.com/aevon-lab/docagg/internal/schema"
	"gopkg.in/yaml.v3"
)

// Compiler compiles YAML collection schema definitions.
type Compiler struct{}

// NewCompiler creates a new YAML compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses a YAML schema definition and returns the collection it describes.
func (c *Compiler) Compile(ctx context.Context, s *schema.Schema) (*schema.Collection, error) {
	if s.Format != schema.FormatYaml {
		return nil, fmt.Errorf("expected yaml format, got %s", s.Format)
	}

	var spec CollectionSpec
	if err := yaml.Unmarshal(s.Definition, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML schema: %w", err)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid YAML schema: %w", err)
	}

	if spec.Collection != s.Collection {
		return nil, fmt.Errorf("schema collection %q does not match %q", spec.Collection, s.Collection)
	}
	if spec.Version != s.Version {
		return nil, fmt.Errorf("schema version %d does not match %d", spec.Version, s.Version)
	}

	var errs []*schema.ValidationError
	fields := buildFields(spec.Fields, "", &errs)
	frameFields := buildFields(spec.FrameFields, "frames", &errs)
	if len(errs) > 0 {
		for _, e := range errs {
			e.Collection = s.Collection
			e.Version = s.Version
			e.Format = string(schema.FormatYaml)
		}
		return nil, &schema.MultiValidationError{Errors: errs}
	}

	media := schema.MediaKind(spec.Media)
	if media == "" {
		media = schema.MediaImage
	}

	return &schema.Collection{
		Name:        s.Collection,
		Media:       media,
		Fields:      fields,
		FrameFields: frameFields,
	}, nil
}
