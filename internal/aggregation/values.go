package aggregation

import (
	"context"
	"strings"

	"github.com/aevon-lab/docagg/internal/expression"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultBigField is the projected field of a streamed Values result.
const DefaultBigField = "values"

// Values extracts the value of a field or expression from every document.
//
// By default one result document is streamed per source document. With
// SingleDocument the values are pushed into a single result document
// instead. Lists that are not unwound are kept as nested lists around the
// values.
type Values struct {
	Field string
	Expr  *expression.Expr
	// MissingValue replaces null and missing values.
	MissingValue any
	Unwind       UnwindMode
	// AllowMissing accepts fields that are not declared on the collection.
	AllowMissing   bool
	SingleDocument bool
	// Raw skips type coercion of the decoded values.
	Raw bool

	identity
}

func (s *Values) Kind() Kind { return KindValues }

func (s *Values) Params() []Param {
	var unwind any = false
	switch s.Unwind {
	case UnwindAll:
		unwind = true
	case UnwindAllButTop:
		unwind = -1
	}
	return []Param{
		{Name: "field_or_expr", Value: fieldParam(s.Field)},
		{Name: "expr", Value: exprParam(s.Expr)},
		{Name: "missing_value", Value: s.MissingValue},
		{Name: "unwind", Value: unwind},
		{Name: "allow_missing", Value: s.AllowMissing},
		{Name: "big_result", Value: !s.SingleDocument},
		{Name: "raw", Value: s.Raw},
	}
}

func (s *Values) DefaultResult() any { return []any{} }

// BigResult reports whether results stream one document per source
// document.
func (s *Values) BigResult() bool { return !s.SingleDocument }

// BigBatchable reports whether the pipeline of s is a single $project that
// can be merged with those of other batchable Values specs.
func (s *Values) BigBatchable() bool {
	return s.BigResult() &&
		s.Unwind == UnwindNone &&
		s.Expr == nil &&
		s.Field != "" &&
		!strings.Contains(s.Field, "[]")
}

func (s *Values) Compile(ctx context.Context, coll Collection) (*Compiled, error) {
	return s.CompileWithField(ctx, coll, DefaultBigField)
}

// CompileWithField compiles s streaming its values under bigField.
func (s *Values) CompileWithField(_ context.Context, coll Collection, bigField string) (*Compiled, error) {
	stages, rp, err := resolve(coll, resolveInput{
		field:        s.Field,
		expr:         s.Expr,
		unwind:       s.Unwind,
		allowMissing: s.AllowMissing,
	})
	if err != nil {
		return nil, err
	}

	c := &Compiled{Kind: KindValues, Resolved: rp, ListDepth: len(rp.Retained)}
	if s.BigResult() {
		c.BigField = bigField
	}
	c.Pipeline = append(stages, extractValues(rp, s.MissingValue, c.BigField)...)
	return c, nil
}

// extractValues projects the value at rp.Path, substituting missing for
// null and mapping over the retained lists so their nesting is preserved.
// An empty bigField pushes all values into a single document.
func extractValues(rp *ResolvedPath, missing any, bigField string) []bson.D {
	lists := rp.Retained
	root := rp.Path
	if len(lists) > 0 {
		root = lists[0]
	}

	self := expression.F("")
	value := self
	if rp.IDToString {
		value = self.ToString()
	}
	e := self.NotNull().IfElse(value, missing)

	if len(lists) > 0 {
		leaf := strings.TrimPrefix(strings.TrimPrefix(rp.Path, lists[len(lists)-1]), ".")
		e = mapList(leaf, e)
	}
	for i := len(lists) - 1; i > 0; i-- {
		e = mapList(strings.TrimPrefix(lists[i], lists[i-1]+"."), e)
	}

	compiled := e.Compile("$" + root)
	if bigField != "" {
		return []bson.D{project(bson.E{Key: bigField, Value: compiled})}
	}
	return []bson.D{
		project(bson.E{Key: "value", Value: compiled}),
		group(nil, accumulate("values", "$push", "$value")),
	}
}

// mapList applies e to the sub field of every element of a list.
func mapList(sub string, e expression.Expr) expression.Expr {
	if sub != "" {
		e = expression.F(sub).Apply(e)
	}
	return expression.F("").Map(e)
}

func (s *Values) Decode(c *Compiled, docs []bson.M) (any, error) {
	var values []any
	if s.BigResult() {
		values = make([]any, len(docs))
		for i, d := range docs {
			values[i] = d[c.BigField]
		}
	} else {
		d, ok := firstDoc(docs)
		if !ok {
			return s.DefaultResult(), nil
		}
		values, _ = asSlice(d["values"])
		if values == nil {
			values = []any{}
		}
	}

	if s.Raw {
		return values, nil
	}

	ft := c.fieldType()
	if ft == nil {
		return nativeList(values), nil
	}
	out, err := transform(values, 1+c.ListDepth, func(v any) (any, error) {
		if s.MissingValue != nil && sameValue(v, s.MissingValue) {
			return v, nil
		}
		return ft.Coerce(v)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
