// Package aggregation compiles aggregation specs into MongoDB pipelines and
// decodes the documents those pipelines return into typed results.
//
// A spec is compiled against a collection schema, the pipeline in the
// returned *Compiled is executed by the caller, and the result documents are
// handed back to the spec's Decode together with the same *Compiled:
//
//	c, err := spec.Compile(ctx, coll)
//	docs, err := executor.Aggregate(ctx, coll.Name(), c.Pipeline)
//	result, err := spec.Decode(c, docs)
package aggregation

import (
	"context"
	"reflect"
	"sync"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Kind discriminates the spec variants.
type Kind string

const (
	KindBounds          Kind = "Bounds"
	KindCount           Kind = "Count"
	KindCountValues     Kind = "CountValues"
	KindDistinct        Kind = "Distinct"
	KindHistogramValues Kind = "HistogramValues"
	KindMean            Kind = "Mean"
	KindStd             Kind = "Std"
	KindSum             Kind = "Sum"
	KindValues          Kind = "Values"
)

// Spec is an aggregation over a collection. The set of implementations is
// closed: Bounds, Count, CountValues, Distinct, HistogramValues, Mean, Std,
// Sum and Values.
type Spec interface {
	Kind() Kind
	// Params returns the ordered parameter list the spec is identified and
	// serialized by.
	Params() []Param
	// Compile builds the pipeline for coll.
	Compile(ctx context.Context, coll Collection) (*Compiled, error)
	// Decode turns the documents returned for c.Pipeline into the result.
	Decode(c *Compiled, docs []bson.M) (any, error)
	// DefaultResult is the result of the spec over no documents.
	DefaultResult() any
	// ID returns the identity token of the spec, generating it on first use.
	ID() string

	setID(id string)
}

// Collection is the schema-aware view of a collection that specs compile
// against.
type Collection interface {
	Name() string
	MediaKind() schema.MediaKind
	FieldType(path string) (*schema.Field, error)
	ResolvePath(name string, opts schema.ResolveOptions) (*schema.ResolvedPath, error)
	SetFieldPipeline(name string, e expression.Expr, embeddedRoot, allowMissing bool) ([]bson.D, string, error)
	// Bounds computes the safe (min, max) of a field or expression. It is
	// used to derive histogram edges.
	Bounds(ctx context.Context, field string, expr *expression.Expr, safe bool) (min, max any, err error)
}

// ResolvedPath is the resolution of a spec's field or expression against a
// collection, with the type used to coerce decoded values. FieldType is nil
// when values need no coercion.
type ResolvedPath struct {
	schema.ResolvedPath
	FieldType *schema.Field
}

// Compiled is the result of compiling a spec against a collection. It is
// consumed by the spec's Decode.
type Compiled struct {
	Kind     Kind
	Pipeline []bson.D
	// Resolved is nil when the spec compiled without touching a field.
	Resolved *ResolvedPath

	// Edges are the histogram bucket boundaries the pipeline was built
	// with. Date edges are held as epoch milliseconds and Datetime is set.
	Edges    []any
	Datetime bool

	// BigField is the projected field holding each streamed value.
	BigField string
	// ListDepth is the number of list levels retained around each value.
	ListDepth int
}

func (c *Compiled) fieldType() *schema.Field {
	if c == nil || c.Resolved == nil {
		return nil
	}
	return c.Resolved.FieldType
}

// Param is one named spec parameter. It serializes as a [name, value] pair.
type Param struct {
	Name  string
	Value any
}

// Equal reports whether two specs have the same kind and parameters.
// Identity tokens are ignored.
func Equal(a, b Spec) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	pa, pb := a.Params(), b.Params()
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if pa[i].Name != pb[i].Name || !reflect.DeepEqual(canonical(pa[i].Value), canonical(pb[i].Value)) {
			return false
		}
	}
	return true
}

// canonical maps parameter values onto a canonical form: expressions are
// compared structurally and numbers by value.
func canonical(v any) any {
	switch val := v.(type) {
	case expression.Expr:
		return canonical(val.Encode())
	case *expression.Expr:
		if val == nil {
			return nil
		}
		return canonical(val.Encode())
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = canonical(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonical(item)
		}
		return out
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	}
	return v
}

// identity is the lazily generated token correlating a spec with its result.
type identity struct {
	once  sync.Once
	token string
}

// ID returns the identity token, generating it on first use.
func (i *identity) ID() string {
	i.once.Do(func() { i.token = uuid.New().String() })
	return i.token
}

func (i *identity) setID(id string) {
	i.once.Do(func() { i.token = id })
}
