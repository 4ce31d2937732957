package aggregation

import (
	"math"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"go.mongodb.org/mongo-driver/bson"
)

func nonFinite() []any {
	return []any{math.NaN(), math.Inf(1), math.Inf(-1)}
}

// toFinite replaces nan and infinite values with null.
func toFinite() expression.Expr {
	self := expression.F("")
	return self.IsIn(nonFinite()).IfElse(nil, self)
}

// safeExpr returns the expression that nulls non-finite values of e, or of
// the field itself when e is nil. Fields with a known non-float type cannot
// hold such values and are left alone.
func safeExpr(e *expression.Expr, ft *schema.Field) *expression.Expr {
	if e == nil && ft != nil && ft.Kind != schema.KindFloat {
		return nil
	}
	finite := toFinite()
	if e != nil {
		finite = e.Apply(finite)
	}
	return &finite
}

// finiteValue is the inline form of toFinite for an already compiled value.
func finiteValue(value any) bson.D {
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{value, bson.A(nonFinite())}}}},
		{Key: "then", Value: nil},
		{Key: "else", Value: value},
	}}}
}
