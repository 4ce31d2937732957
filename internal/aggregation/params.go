package aggregation

import (
	"fmt"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/spf13/cast"
)

func baseParams(field string, expr *expression.Expr, safe bool) []Param {
	return []Param{
		{Name: "field_or_expr", Value: fieldParam(field)},
		{Name: "expr", Value: exprParam(expr)},
		{Name: "safe", Value: safe},
	}
}

func fieldParam(field string) any {
	if field == "" {
		return nil
	}
	return field
}

func exprParam(e *expression.Expr) any {
	if e == nil {
		return nil
	}
	return *e
}

func listParam(items []any) any {
	if items == nil {
		return nil
	}
	return items
}

// paramReader decodes the parameters of a serialized spec, keeping the
// first error it runs into.
type paramReader struct {
	kind   Kind
	values map[string]any
	err    error
}

func (r *paramReader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s.%s: %w", ErrInvalidSpecification, r.kind, name, err)
	}
}

func (r *paramReader) field() string {
	v := r.values["field_or_expr"]
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail("field_or_expr", fmt.Errorf("expected a field name, got %T", v))
	}
	return s
}

func (r *paramReader) expr() *expression.Expr {
	v := r.values["expr"]
	if v == nil {
		return nil
	}
	e, err := expression.Decode(v)
	if err != nil {
		r.fail("expr", err)
		return nil
	}
	return &e
}

func (r *paramReader) boolean(name string, def bool) bool {
	v, ok := r.values[name]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		r.fail(name, err)
	}
	return b
}

func (r *paramReader) integer(name string) int {
	v := r.values[name]
	if v == nil {
		return 0
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		r.fail(name, err)
	}
	return n
}

func (r *paramReader) str(name string) string {
	v := r.values[name]
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		r.fail(name, err)
	}
	return s
}

func (r *paramReader) list(name string) []any {
	v := r.values[name]
	if v == nil {
		return nil
	}
	items, ok := asSlice(v)
	if !ok {
		r.fail(name, fmt.Errorf("expected a list, got %T", v))
		return nil
	}
	return items
}

// bounds reads histogram range or edge values. JSON carries dates as RFC 3339
// strings; they come back as time.Time.
func (r *paramReader) bounds(name string) []any {
	items := r.list(name)
	if items == nil {
		return nil
	}
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
		if _, ok := v.(string); !ok {
			continue
		}
		if t, ok := asTime(v); ok {
			out[i] = t
		}
	}
	return out
}

func (r *paramReader) value(name string) any {
	return r.values[name]
}

// unwindMode decodes the Values unwind flag: false, true or -1.
func (r *paramReader) unwindMode() UnwindMode {
	v := r.values["unwind"]
	switch val := v.(type) {
	case nil:
		return UnwindNone
	case bool:
		if val {
			return UnwindAll
		}
		return UnwindNone
	}
	n, err := cast.ToIntE(v)
	if err != nil || n != -1 {
		r.fail("unwind", fmt.Errorf("expected true, false or -1, got %v", v))
		return UnwindNone
	}
	return UnwindAllButTop
}
