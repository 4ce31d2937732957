package expression

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cast"
)

// ErrInvalidExpression is returned when an encoded or textual expression
// cannot be decoded.
var ErrInvalidExpression = errors.New("invalid expression")

// Encode returns the structural form of the tree. It is the persisted
// representation used inside serialized aggregation documents.
func (e Expr) Encode() map[string]any {
	var out map[string]any
	switch e.kind {
	case kindField:
		out = map[string]any{"field": e.path}
	case kindVar:
		out = map[string]any{"var": e.name}
	case kindLiteral:
		out = map[string]any{"literal": e.value}
	case kindArray:
		out = map[string]any{"array": encodeArgs(e.args)}
	case kindObject:
		out = map[string]any{"object": encodeParams(e.params)}
	case kindOp:
		out = map[string]any{"op": e.name, "args": encodeArgs(e.args)}
		if e.unary {
			out["unary"] = true
		}
	case kindDoc:
		out = map[string]any{"op": e.name, "params": encodeParams(e.params)}
	}
	if e.frozen {
		out["frozen"] = true
	}
	return out
}

func encodeArgs(args []Expr) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Encode()
	}
	return out
}

func encodeParams(params []param) []any {
	out := make([]any, len(params))
	for i, p := range params {
		m := map[string]any{"key": p.key, "expr": p.expr.Encode()}
		if p.scoped {
			m["scope"] = p.scope
		}
		out[i] = m
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (e Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Encode())
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers are kept as
// int64 so literals survive a round trip unchanged.
func (e *Expr) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// Decode rebuilds an expression from its structural form. Strings are
// parsed as textual expressions (see Parse).
func Decode(v any) (Expr, error) {
	switch val := v.(type) {
	case Expr:
		return val, nil
	case *Expr:
		if val == nil {
			return Expr{}, fmt.Errorf("%w: nil expression", ErrInvalidExpression)
		}
		return *val, nil
	case string:
		return Parse(val)
	}

	m, err := cast.ToStringMapE(v)
	if err != nil {
		return Expr{}, fmt.Errorf("%w: expected object, got %T", ErrInvalidExpression, v)
	}

	var e Expr
	switch {
	case has(m, "field"):
		path, err := cast.ToStringE(m["field"])
		if err != nil {
			return Expr{}, fmt.Errorf("%w: field: %v", ErrInvalidExpression, err)
		}
		e = F(path)
	case has(m, "var"):
		name, err := cast.ToStringE(m["var"])
		if err != nil {
			return Expr{}, fmt.Errorf("%w: var: %v", ErrInvalidExpression, err)
		}
		e = Var(name)
	case has(m, "literal"):
		e = Lit(NormalizeValue(m["literal"]))
	case has(m, "array"):
		args, err := decodeArgs(m["array"])
		if err != nil {
			return Expr{}, err
		}
		e = Expr{kind: kindArray, args: args}
	case has(m, "object"):
		params, err := decodeParams(m["object"])
		if err != nil {
			return Expr{}, err
		}
		e = Expr{kind: kindObject, params: params}
	case has(m, "op"):
		name, err := cast.ToStringE(m["op"])
		if err != nil || name == "" {
			return Expr{}, fmt.Errorf("%w: op must be a non-empty string", ErrInvalidExpression)
		}
		if has(m, "params") {
			params, err := decodeParams(m["params"])
			if err != nil {
				return Expr{}, err
			}
			e = Expr{kind: kindDoc, name: name, params: params}
			break
		}
		args, err := decodeArgs(m["args"])
		if err != nil {
			return Expr{}, err
		}
		e = Expr{kind: kindOp, name: name, args: args, unary: cast.ToBool(m["unary"])}
		if e.unary && len(args) != 1 {
			return Expr{}, fmt.Errorf("%w: unary %s takes exactly one argument", ErrInvalidExpression, name)
		}
	default:
		return Expr{}, fmt.Errorf("%w: unrecognized node %v", ErrInvalidExpression, keys(m))
	}

	e.frozen = cast.ToBool(m["frozen"])
	return e, nil
}

func decodeArgs(v any) ([]Expr, error) {
	if v == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: expected list, got %T", ErrInvalidExpression, v)
	}
	args := make([]Expr, len(items))
	for i, item := range items {
		if args[i], err = Decode(item); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func decodeParams(v any) ([]param, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: expected list of params, got %T", ErrInvalidExpression, v)
	}
	params := make([]param, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("%w: param %d: %v", ErrInvalidExpression, i, err)
		}
		key, err := cast.ToStringE(m["key"])
		if err != nil || key == "" {
			return nil, fmt.Errorf("%w: param %d: missing key", ErrInvalidExpression, i)
		}
		sub, err := Decode(m["expr"])
		if err != nil {
			return nil, err
		}
		p := param{key: key, expr: sub}
		if has(m, "scope") {
			p.scope = cast.ToString(m["scope"])
			p.scoped = true
		}
		params[i] = p
	}
	return params, nil
}

// NormalizeValue converts json.Number values produced by a decoder running
// with UseNumber into int64 or float64, recursing into lists and maps.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
