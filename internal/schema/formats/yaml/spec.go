package yaml

import (
	"fmt"
	"sort"

	"github.com/aevon-lab/docagg/internal/schema"
	"gopkg.in/yaml.v3"
)

// CollectionSpec is the YAML definition of a collection schema.
type CollectionSpec struct {
	Collection  string                `yaml:"collection"`
	Version     int                   `yaml:"version"`
	Description string                `yaml:"description,omitempty"`
	Media       string                `yaml:"media,omitempty"`
	Fields      map[string]*FieldSpec `yaml:"fields"`
	FrameFields map[string]*FieldSpec `yaml:"frame_fields,omitempty"`
}

// FieldSpec defines a single field in a YAML collection schema.
//
// Fields support two declaration styles:
//
//	Shorthand (scalar): confidence: float
//	Long form (mapping): ground_truth:
//	                        type: embedded
//	                        fields:
//	                          label: string
//
// Type names: string, bool, int, float, date, datetime, objectid, decimal,
// dict, embedded, and lists of any of them as list<T> or []T. Sub-fields
// of a list of embedded documents are declared under "fields".
type FieldSpec struct {
	Type        string                `yaml:"type"`
	Description string                `yaml:"description,omitempty"`
	Fields      map[string]*FieldSpec `yaml:"fields,omitempty"`
}

// UnmarshalYAML implements custom unmarshaling to support both shorthand
// and long-form field declarations.
func (f *FieldSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		f.Type = value.Value
		return nil
	}

	// Decode via alias to avoid infinite recursion.
	type fieldAlias FieldSpec
	var alias fieldAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*f = FieldSpec(alias)

	if f.Type == "" {
		if len(f.Fields) == 0 {
			return fmt.Errorf("field missing 'type'")
		}
		f.Type = "embedded"
	}
	return nil
}

// Validate checks that the spec is structurally valid.
func (s *CollectionSpec) Validate() error {
	if s.Collection == "" {
		return fmt.Errorf("collection name is required")
	}
	if s.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema must define at least one field")
	}
	switch schema.MediaKind(s.Media) {
	case "", schema.MediaImage:
		if len(s.FrameFields) > 0 {
			return fmt.Errorf("frame_fields require media: video")
		}
	case schema.MediaVideo:
	default:
		return fmt.Errorf("unsupported media %q (must be: image, video)", s.Media)
	}
	return nil
}

// buildFields converts field specs into schema fields, collecting every
// invalid declaration.
func buildFields(specs map[string]*FieldSpec, prefix string, errs *[]*schema.ValidationError) map[string]*schema.Field {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(map[string]*schema.Field, len(specs))
	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		spec := specs[name]
		if spec == nil {
			*errs = append(*errs, &schema.ValidationError{Message: "type cannot be empty", Field: path})
			continue
		}

		f, err := schema.ParseType(name, spec.Type)
		if err != nil {
			*errs = append(*errs, &schema.ValidationError{Message: err.Error(), Field: path, Type: spec.Type})
			continue
		}

		// Sub-fields attach to the innermost element of a list.
		leaf := f
		for leaf.Kind == schema.KindList {
			if leaf.Elem == nil {
				kind := schema.KindDict
				if len(spec.Fields) > 0 {
					kind = schema.KindEmbedded
				}
				leaf.Elem = &schema.Field{Name: name, Kind: kind}
			}
			leaf = leaf.Elem
		}
		if len(spec.Fields) > 0 {
			if leaf.Kind != schema.KindEmbedded {
				*errs = append(*errs, &schema.ValidationError{
					Message: "only embedded fields may declare sub-fields", Field: path, Type: spec.Type,
				})
				continue
			}
			leaf.Fields = buildFields(spec.Fields, path, errs)
		} else if leaf.Kind == schema.KindEmbedded {
			leaf.Fields = map[string]*schema.Field{}
		}

		fields[name] = f
	}
	return fields
}
