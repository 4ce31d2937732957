package expression

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var binaryOperators = map[string]string{
	"+":   "$add",
	"-":   "$subtract",
	"*":   "$multiply",
	"/":   "$divide",
	"%":   "$mod",
	"**":  "$pow",
	"^":   "$pow",
	"==":  "$eq",
	"!=":  "$ne",
	"<":   "$lt",
	"<=":  "$lte",
	">":   "$gt",
	">=":  "$gte",
	"and": "$and",
	"&&":  "$and",
	"or":  "$or",
	"||":  "$or",
}

// unaryFunctions maps function names to single-operand operators.
var unaryFunctions = map[string]string{
	"len":      "$size",
	"abs":      "$abs",
	"upper":    "$toUpper",
	"lower":    "$toLower",
	"string":   "$toString",
	"toString": "$toString",
	"int":      "$toInt",
	"float":    "$toDouble",
	"date":     "$toDate",
	"floor":    "$floor",
	"ceil":     "$ceil",
	"sqrt":     "$sqrt",
	"exp":      "$exp",
	"log":      "$ln",
	"trim":     "$trim",
}

// variadicFunctions maps function names to operators taking an argument list.
var variadicFunctions = map[string]string{
	"min":    "$min",
	"max":    "$max",
	"round":  "$round",
	"concat": "$concat",
	"first":  "$first",
	"last":   "$last",
}

// Parse converts a textual expression into an expression tree.
//
// Identifiers and member accesses become field references ("a.b.c"),
// literals become literals, and operators and functions map onto their
// aggregation counterparts. Inside map, filter and reduce predicates, "#"
// (or a leading ".") refers to the current element and "#acc" to the
// reduce accumulator:
//
//	2 * (confidence + 1)
//	len(tags) > 2 ? tags : nil
//	map(detections, .label)
//	reduce(values, #acc + #, 0)
func Parse(input string) (Expr, error) {
	tree, err := parser.Parse(input)
	if err != nil {
		return Expr{}, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return convert(tree.Node)
}

func convert(node ast.Node) (Expr, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		return Lit(nil), nil
	case *ast.BoolNode:
		return Lit(n.Value), nil
	case *ast.IntegerNode:
		return Lit(int64(n.Value)), nil
	case *ast.FloatNode:
		return Lit(n.Value), nil
	case *ast.StringNode:
		return Lit(n.Value), nil
	case *ast.IdentifierNode:
		return F(n.Value), nil
	case *ast.PointerNode:
		if n.Name == "acc" {
			return Value, nil
		}
		if n.Name != "" {
			return Expr{}, fmt.Errorf("%w: unknown pointer #%s", ErrInvalidExpression, n.Name)
		}
		return F(""), nil
	case *ast.MemberNode:
		return convertMember(n)
	case *ast.ChainNode:
		return convert(n.Node)
	case *ast.UnaryNode:
		return convertUnary(n)
	case *ast.BinaryNode:
		return convertBinary(n)
	case *ast.ConditionalNode:
		cond, err := convert(n.Cond)
		if err != nil {
			return Expr{}, err
		}
		then, err := convert(n.Exp1)
		if err != nil {
			return Expr{}, err
		}
		otherwise, err := convert(n.Exp2)
		if err != nil {
			return Expr{}, err
		}
		return cond.IfElse(then, otherwise), nil
	case *ast.ArrayNode:
		items, err := convertAll(n.Nodes)
		if err != nil {
			return Expr{}, err
		}
		return Expr{kind: kindArray, args: items}, nil
	case *ast.BuiltinNode:
		return convertCall(n.Name, n.Arguments)
	case *ast.CallNode:
		ident, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return Expr{}, fmt.Errorf("%w: unsupported call target", ErrInvalidExpression)
		}
		return convertCall(ident.Value, n.Arguments)
	case *ast.ClosureNode:
		return convert(n.Node)
	default:
		return Expr{}, fmt.Errorf("%w: unsupported syntax %T", ErrInvalidExpression, node)
	}
}

func convertAll(nodes []ast.Node) ([]Expr, error) {
	out := make([]Expr, len(nodes))
	for i, n := range nodes {
		e, err := convert(n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func convertMember(n *ast.MemberNode) (Expr, error) {
	base, err := convert(n.Node)
	if err != nil {
		return Expr{}, err
	}
	switch prop := n.Property.(type) {
	case *ast.StringNode:
		if base.kind == kindField && !base.frozen {
			if base.path == "" {
				return F(prop.Value), nil
			}
			return F(base.path + "." + prop.Value), nil
		}
		return Expr{}, fmt.Errorf("%w: member access on computed value", ErrInvalidExpression)
	default:
		index, err := convert(n.Property)
		if err != nil {
			return Expr{}, err
		}
		return base.At(index), nil
	}
}

func convertUnary(n *ast.UnaryNode) (Expr, error) {
	operand, err := convert(n.Node)
	if err != nil {
		return Expr{}, err
	}
	switch n.Operator {
	case "!", "not":
		return operand.Not(), nil
	case "-":
		if operand.kind == kindLiteral {
			switch v := operand.value.(type) {
			case int64:
				return Lit(-v), nil
			case float64:
				return Lit(-v), nil
			}
		}
		return operand.Negate(), nil
	case "+":
		return operand, nil
	}
	return Expr{}, fmt.Errorf("%w: unsupported operator %q", ErrInvalidExpression, n.Operator)
}

func convertBinary(n *ast.BinaryNode) (Expr, error) {
	left, err := convert(n.Left)
	if err != nil {
		return Expr{}, err
	}
	right, err := convert(n.Right)
	if err != nil {
		return Expr{}, err
	}
	if op, ok := binaryOperators[n.Operator]; ok {
		return Op(op, left, right), nil
	}
	switch n.Operator {
	case "in":
		return left.IsIn(right), nil
	case "??":
		return Op("$ifNull", left, right), nil
	case "contains":
		return Op("$gte", Op("$indexOfCP", left, right), 0), nil
	case "startsWith":
		return Op("$eq", Op("$indexOfCP", left, right), 0), nil
	case "matches":
		return regexMatch(left, right), nil
	}
	return Expr{}, fmt.Errorf("%w: unsupported operator %q", ErrInvalidExpression, n.Operator)
}

func regexMatch(input, regex Expr) Expr {
	return Expr{kind: kindDoc, name: "$regexMatch", params: []param{
		{key: "input", expr: input},
		{key: "regex", expr: regex},
	}}
}

func convertCall(name string, nodes []ast.Node) (Expr, error) {
	args, err := convertAll(nodes)
	if err != nil {
		return Expr{}, err
	}
	if op, ok := unaryFunctions[name]; ok {
		if len(args) != 1 {
			return Expr{}, fmt.Errorf("%w: %s takes one argument", ErrInvalidExpression, name)
		}
		return UnaryOp(op, args[0]), nil
	}
	if op, ok := variadicFunctions[name]; ok {
		operands := make([]any, len(args))
		for i, a := range args {
			operands[i] = a
		}
		return Op(op, operands...), nil
	}
	switch name {
	case "map", "filter":
		if len(args) != 2 {
			return Expr{}, fmt.Errorf("%w: %s takes a list and a predicate", ErrInvalidExpression, name)
		}
		if name == "map" {
			return args[0].Map(args[1]), nil
		}
		return args[0].Filter(args[1]), nil
	case "reduce":
		if len(args) != 3 {
			return Expr{}, fmt.Errorf("%w: reduce takes a list, a predicate and an initial value", ErrInvalidExpression)
		}
		return args[0].Reduce(args[1], args[2]), nil
	case "frozen":
		if len(args) != 1 {
			return Expr{}, fmt.Errorf("%w: frozen takes one argument", ErrInvalidExpression)
		}
		return args[0].Freeze(), nil
	}
	return Expr{}, fmt.Errorf("%w: unknown function %q", ErrInvalidExpression, strings.TrimSpace(name))
}
