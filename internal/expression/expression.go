package expression

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

type nodeKind int

const (
	kindField nodeKind = iota
	kindVar
	kindLiteral
	kindArray
	kindObject
	kindOp
	kindDoc
)

// Expr is an immutable node of an aggregation expression tree.
//
// Every method returns a new tree; the receiver and its operands are never
// modified, so sub-trees can be shared freely between expressions.
type Expr struct {
	kind   nodeKind
	path   string
	name   string
	value  any
	args   []Expr
	params []param
	unary  bool
	frozen bool
}

// param is a named operand of a document-style operator such as $cond or $map.
// Scoped params are compiled against the variable their operator binds
// instead of the caller's prefix.
type param struct {
	key    string
	expr   Expr
	scope  string
	scoped bool
}

// Common variables bound by $reduce.
var (
	Value = Var("value")
	This  = Var("this")
)

// F returns a reference to the field at the given dotted path, relative to
// whatever document the expression is compiled against. F("") refers to
// that document itself.
func F(path string) Expr {
	return Expr{kind: kindField, path: path}
}

// Var returns a reference to an aggregation variable ($$name).
func Var(name string) Expr {
	return Expr{kind: kindVar, name: strings.TrimPrefix(name, "$$")}
}

// Lit returns a literal value.
func Lit(v any) Expr {
	return Expr{kind: kindLiteral, value: v}
}

// Array returns an array whose elements are evaluated expressions.
func Array(items ...any) Expr {
	args := make([]Expr, len(items))
	for i, item := range items {
		args[i] = From(item)
	}
	return Expr{kind: kindArray, args: args}
}

// Op builds a `{name: [args...]}` operator expression.
func Op(name string, args ...any) Expr {
	operands := make([]Expr, len(args))
	for i, a := range args {
		operands[i] = From(a)
	}
	return Expr{kind: kindOp, name: name, args: operands}
}

// UnaryOp builds a `{name: arg}` operator expression.
func UnaryOp(name string, arg any) Expr {
	return Expr{kind: kindOp, name: name, args: []Expr{From(arg)}, unary: true}
}

// From converts an arbitrary value to an expression. Expressions are
// returned as-is, everything else becomes a literal.
func From(v any) Expr {
	switch e := v.(type) {
	case Expr:
		return e
	case *Expr:
		if e == nil {
			return Lit(nil)
		}
		return *e
	default:
		return Lit(v)
	}
}

// IsField reports whether the node is a bare field reference.
func (e Expr) IsField() bool { return e.kind == kindField }

// IsFrozen reports whether the sub-tree was marked as a constant.
func (e Expr) IsFrozen() bool { return e.frozen }

// Path returns the field path of a field reference, or "" for other nodes.
func (e Expr) Path() string {
	if e.kind != kindField {
		return ""
	}
	return e.path
}

// Freeze marks the sub-tree so that its field references are ignored by
// prefix extraction.
func (e Expr) Freeze() Expr {
	e.frozen = true
	return e
}

// Arithmetic

func (e Expr) Add(other any) Expr      { return Op("$add", e, other) }
func (e Expr) Subtract(other any) Expr { return Op("$subtract", e, other) }
func (e Expr) Multiply(other any) Expr { return Op("$multiply", e, other) }
func (e Expr) Divide(other any) Expr   { return Op("$divide", e, other) }
func (e Expr) Mod(other any) Expr      { return Op("$mod", e, other) }
func (e Expr) Pow(other any) Expr      { return Op("$pow", e, other) }
func (e Expr) Abs() Expr               { return UnaryOp("$abs", e) }
func (e Expr) Negate() Expr            { return Op("$multiply", -1, e) }

// Comparison

func (e Expr) Eq(other any) Expr  { return Op("$eq", e, other) }
func (e Expr) Ne(other any) Expr  { return Op("$ne", e, other) }
func (e Expr) Gt(other any) Expr  { return Op("$gt", e, other) }
func (e Expr) Gte(other any) Expr { return Op("$gte", e, other) }
func (e Expr) Lt(other any) Expr  { return Op("$lt", e, other) }
func (e Expr) Lte(other any) Expr { return Op("$lte", e, other) }

// NotNull is true when the value exists and is not null. Missing values
// sort below null, so a strict comparison excludes both.
func (e Expr) NotNull() Expr { return Op("$gt", e, nil) }

// Logic

func (e Expr) And(other any) Expr { return Op("$and", e, other) }
func (e Expr) Or(other any) Expr  { return Op("$or", e, other) }
func (e Expr) Not() Expr          { return Op("$not", e) }

// IsIn is true when the value is a member of values.
func (e Expr) IsIn(values any) Expr {
	return Op("$in", e, values)
}

// IfElse evaluates to then when e is true and to otherwise when it is not.
func (e Expr) IfElse(then, otherwise any) Expr {
	return Expr{kind: kindDoc, name: "$cond", params: []param{
		{key: "if", expr: e},
		{key: "then", expr: From(then)},
		{key: "else", expr: From(otherwise)},
	}}
}

// Strings and arrays

func (e Expr) ToString() Expr { return UnaryOp("$toString", e) }
func (e Expr) ToDate() Expr   { return UnaryOp("$toDate", e) }
func (e Expr) Upper() Expr    { return UnaryOp("$toUpper", e) }
func (e Expr) Lower() Expr    { return UnaryOp("$toLower", e) }
func (e Expr) Length() Expr   { return UnaryOp("$size", e) }

// Extend concatenates the given arrays onto e.
func (e Expr) Extend(arrays ...any) Expr {
	return Op("$concatArrays", append([]any{e}, arrays...)...)
}

// At returns the array element at index.
func (e Expr) At(index any) Expr {
	return Op("$arrayElemAt", e, index)
}

// Map applies sub to every element of the array e. Inside sub, F("")
// refers to the current element.
func (e Expr) Map(sub any) Expr {
	return Expr{kind: kindDoc, name: "$map", params: []param{
		{key: "input", expr: e},
		{key: "as", expr: Lit("this")},
		{key: "in", expr: From(sub), scope: "$$this", scoped: true},
	}}
}

// Filter keeps the elements of the array e for which cond is true.
func (e Expr) Filter(cond any) Expr {
	return Expr{kind: kindDoc, name: "$filter", params: []param{
		{key: "input", expr: e},
		{key: "as", expr: Lit("this")},
		{key: "cond", expr: From(cond), scope: "$$this", scoped: true},
	}}
}

// Apply evaluates sub with F("") bound to the value of e.
func (e Expr) Apply(sub any) Expr {
	return Expr{kind: kindDoc, name: "$let", params: []param{
		{key: "vars", expr: Expr{kind: kindObject, params: []param{{key: "expr", expr: e}}}},
		{key: "in", expr: From(sub), scope: "$$expr", scoped: true},
	}}
}

// Reduce folds the array e into a single value. Inside combinator, F("")
// refers to the current element and Value to the accumulator.
func (e Expr) Reduce(combinator any, initial any) Expr {
	return Expr{kind: kindDoc, name: "$reduce", params: []param{
		{key: "input", expr: e},
		{key: "initialValue", expr: From(initial)},
		{key: "in", expr: From(combinator), scope: "$$this", scoped: true},
	}}
}

// Compile lowers the tree to an aggregation expression value. Field
// references are resolved relative to prefix, which is either "" (the
// current document) or a reference such as "$field" or "$$this".
func (e Expr) Compile(prefix string) any {
	switch e.kind {
	case kindField:
		return fieldRef(prefix, e.path)
	case kindVar:
		return "$$" + e.name
	case kindLiteral:
		return literal(e.value)
	case kindArray:
		out := make(bson.A, len(e.args))
		for i, a := range e.args {
			out[i] = a.Compile(prefix)
		}
		return out
	case kindObject:
		return compileParams(e.params, prefix)
	case kindOp:
		if e.unary {
			return bson.D{{Key: e.name, Value: e.args[0].Compile(prefix)}}
		}
		args := make(bson.A, len(e.args))
		for i, a := range e.args {
			args[i] = a.Compile(prefix)
		}
		return bson.D{{Key: e.name, Value: args}}
	case kindDoc:
		return bson.D{{Key: e.name, Value: compileParams(e.params, prefix)}}
	}
	return nil
}

func compileParams(params []param, prefix string) bson.D {
	doc := make(bson.D, 0, len(params))
	for _, p := range params {
		scope := prefix
		if p.scoped {
			scope = p.scope
		}
		doc = append(doc, bson.E{Key: p.key, Value: p.expr.Compile(scope)})
	}
	return doc
}

func fieldRef(prefix, path string) string {
	switch {
	case prefix == "" && path == "":
		return "$$CURRENT"
	case prefix == "":
		return "$" + path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}

// literal keeps strings that look like field paths from being evaluated.
func literal(v any) any {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			return bson.D{{Key: "$literal", Value: val}}
		}
		return val
	case []any:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = literal(item)
		}
		return out
	case bson.A:
		return literal([]any(val))
	default:
		return v
	}
}
