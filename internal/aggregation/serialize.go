package aggregation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Document is the serialized form of a spec.
type Document struct {
	Kind   Kind    `json:"kind" yaml:"kind"`
	Params []Param `json:"params" yaml:"params"`
	UUID   string  `json:"uuid,omitempty" yaml:"uuid,omitempty"`
}

// kindEntry builds a spec from its decoded parameters.
type kindEntry struct {
	empty func() Spec
	build func(r *paramReader) Spec
}

// kinds is the discriminator table of serialized documents.
var kinds = map[Kind]kindEntry{
	KindBounds: {
		empty: func() Spec { return &Bounds{} },
		build: func(r *paramReader) Spec {
			return &Bounds{
				Field:           r.field(),
				Expr:            r.expr(),
				Safe:            r.boolean("safe", false),
				CountNonfinites: r.boolean("count_nonfinites", false),
			}
		},
	},
	KindCount: {
		empty: func() Spec { return &Count{} },
		build: func(r *paramReader) Spec {
			return &Count{
				Field:         r.field(),
				Expr:          r.expr(),
				Safe:          r.boolean("safe", false),
				DisableUnwind: !r.boolean("unwind", true),
			}
		},
	},
	KindCountValues: {
		empty: func() Spec { return &CountValues{} },
		build: func(r *paramReader) Spec {
			return &CountValues{
				Field:    r.field(),
				Expr:     r.expr(),
				Safe:     r.boolean("safe", false),
				First:    r.integer("first"),
				SortBy:   r.str("sort_by"),
				Desc:     !r.boolean("asc", true),
				Include:  r.list("include"),
				Search:   r.str("search"),
				Selected: r.list("selected"),
			}
		},
	},
	KindDistinct: {
		empty: func() Spec { return &Distinct{} },
		build: func(r *paramReader) Spec {
			return &Distinct{Field: r.field(), Expr: r.expr(), Safe: r.boolean("safe", false)}
		},
	},
	KindHistogramValues: {
		empty: func() Spec { return &HistogramValues{} },
		build: func(r *paramReader) Spec {
			s := &HistogramValues{
				Field: r.field(),
				Expr:  r.expr(),
				Range: r.bounds("range"),
				Auto:  r.boolean("auto", false),
			}
			if _, isList := asSlice(r.value("bins")); isList {
				s.Edges = r.bounds("bins")
			} else {
				s.Bins = r.integer("bins")
			}
			return s
		},
	},
	KindMean: {
		empty: func() Spec { return &Mean{} },
		build: func(r *paramReader) Spec {
			return &Mean{Field: r.field(), Expr: r.expr(), Safe: r.boolean("safe", false)}
		},
	},
	KindStd: {
		empty: func() Spec { return &Std{} },
		build: func(r *paramReader) Spec {
			return &Std{
				Field:  r.field(),
				Expr:   r.expr(),
				Safe:   r.boolean("safe", false),
				Sample: r.boolean("sample", false),
			}
		},
	},
	KindSum: {
		empty: func() Spec { return &Sum{} },
		build: func(r *paramReader) Spec {
			return &Sum{Field: r.field(), Expr: r.expr(), Safe: r.boolean("safe", false)}
		},
	},
	KindValues: {
		empty: func() Spec { return &Values{} },
		build: func(r *paramReader) Spec {
			return &Values{
				Field:          r.field(),
				Expr:           r.expr(),
				MissingValue:   r.value("missing_value"),
				Unwind:         r.unwindMode(),
				AllowMissing:   r.boolean("allow_missing", false),
				SingleDocument: !r.boolean("big_result", true),
				Raw:            r.boolean("raw", false),
			}
		},
	},
}

// Serialize returns the document form of s. With includeID the identity
// token of s is generated if needed and carried along.
func Serialize(s Spec, includeID bool) Document {
	d := Document{Kind: s.Kind(), Params: s.Params()}
	if includeID {
		d.UUID = s.ID()
	}
	return d
}

// Deserialize rebuilds the spec described by d.
func Deserialize(d Document) (Spec, error) {
	entry, ok := kinds[d.Kind]
	if !ok {
		return nil, invalidf("unknown kind %q", d.Kind)
	}

	known := make(map[string]bool)
	for _, p := range entry.empty().Params() {
		known[p.Name] = true
	}
	r := &paramReader{kind: d.Kind, values: make(map[string]any, len(d.Params))}
	for _, p := range d.Params {
		if !known[p.Name] {
			return nil, invalidf("%s has no parameter %q", d.Kind, p.Name)
		}
		r.values[p.Name] = p.Value
	}

	s := entry.build(r)
	if r.err != nil {
		return nil, r.err
	}
	if d.UUID != "" {
		s.setID(d.UUID)
	}
	return s, nil
}

// MarshalJSON encodes the parameter as a [name, value] pair.
func (p Param) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Name, p.Value})
}

// UnmarshalJSON decodes a [name, value] pair. Integral numbers decode as
// int64.
func (p *Param) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var pair []any
	if err := dec.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("param: expected [name, value], got %d items", len(pair))
	}
	name, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("param: name must be a string, got %T", pair[0])
	}
	p.Name = name
	p.Value = expression.NormalizeValue(pair[1])
	return nil
}

// MarshalYAML encodes the parameter as a [name, value] pair.
func (p Param) MarshalYAML() (any, error) {
	v := p.Value
	if e, ok := v.(expression.Expr); ok {
		v = e.Encode()
	}
	return []any{p.Name, v}, nil
}

const documentSchema = `{
  "type": "object",
  "required": ["kind", "params"],
  "additionalProperties": false,
  "properties": {
    "kind": {"type": "string", "enum": [
      "Bounds", "Count", "CountValues", "Distinct", "HistogramValues",
      "Mean", "Std", "Sum", "Values"
    ]},
    "params": {
      "type": "array",
      "items": {
        "type": "array",
        "minItems": 2,
        "maxItems": 2,
        "items": [{"type": "string"}, {}]
      }
    },
    "uuid": {"type": "string"}
  }
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ValidateDocument checks the shape of a JSON-encoded document.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidSpecification, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseDocument validates and decodes a JSON-encoded document.
func ParseDocument(data []byte) (Spec, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}
	return Deserialize(d)
}

// ParseDocuments decodes a JSON array of documents.
func ParseDocuments(data []byte) ([]Spec, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}
	specs := make([]Spec, len(raw))
	for i, r := range raw {
		s, err := ParseDocument(r)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		specs[i] = s
	}
	return specs, nil
}

// ParseYAML decodes a YAML list of documents.
func ParseYAML(data []byte) ([]Spec, error) {
	var docs []any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}
	encoded, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpecification, err)
	}
	return ParseDocuments(encoded)
}
