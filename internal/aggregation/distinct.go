package aggregation

import (
	"context"

	"github.com/aevon-lab/docagg/internal/expression"
	"go.mongodb.org/mongo-driver/bson"
)

// Distinct computes the sorted distinct non-null values of a field or
// expression.
type Distinct struct {
	Field string
	Expr  *expression.Expr
	Safe  bool

	identity
}

func (s *Distinct) Kind() Kind { return KindDistinct }

func (s *Distinct) Params() []Param { return baseParams(s.Field, s.Expr, s.Safe) }

func (s *Distinct) DefaultResult() any { return []any{} }

func (s *Distinct) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	stages, rp, err := resolve(coll, resolveInput{field: s.Field, expr: s.Expr, safe: s.Safe, unwind: UnwindAll})
	if err != nil {
		return nil, err
	}

	stages = append(stages,
		matchNotNull(rp.Path),
		group(nil, accumulate("values", "$addToSet", valueOf(rp))),
		unwind("values"),
		sortBy(bson.D{{Key: "values", Value: 1}}),
		group(nil, accumulate("values", "$push", "$values")),
	)
	return &Compiled{Kind: KindDistinct, Pipeline: stages, Resolved: rp}, nil
}

func (s *Distinct) Decode(c *Compiled, docs []bson.M) (any, error) {
	d, ok := firstDoc(docs)
	if !ok {
		return s.DefaultResult(), nil
	}
	items, _ := asSlice(d["values"])

	ft := c.fieldType()
	out := make([]any, len(items))
	for i, item := range items {
		v, err := coerce(ft, item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
