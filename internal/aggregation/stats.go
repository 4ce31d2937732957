package aggregation

import (
	"context"

	"github.com/aevon-lab/docagg/internal/expression"
	"go.mongodb.org/mongo-driver/bson"
)

// Mean computes the arithmetic mean of a field or expression.
type Mean struct {
	Field string
	Expr  *expression.Expr
	Safe  bool

	identity
}

// Std computes the standard deviation of a field or expression.
type Std struct {
	Field string
	Expr  *expression.Expr
	Safe  bool
	// Sample selects the sample standard deviation over the population one.
	Sample bool

	identity
}

// Sum computes the sum of a field or expression.
type Sum struct {
	Field string
	Expr  *expression.Expr
	Safe  bool

	identity
}

func (s *Mean) Kind() Kind { return KindMean }
func (s *Std) Kind() Kind  { return KindStd }
func (s *Sum) Kind() Kind  { return KindSum }

func (s *Mean) Params() []Param { return baseParams(s.Field, s.Expr, s.Safe) }
func (s *Sum) Params() []Param  { return baseParams(s.Field, s.Expr, s.Safe) }
func (s *Std) Params() []Param {
	return append(baseParams(s.Field, s.Expr, s.Safe), Param{Name: "sample", Value: s.Sample})
}

func (s *Mean) DefaultResult() any { return float64(0) }
func (s *Std) DefaultResult() any  { return float64(0) }
func (s *Sum) DefaultResult() any  { return float64(0) }

func (s *Mean) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	return compileReduction(coll, KindMean, s.Field, s.Expr, s.Safe, "mean", "$avg")
}

func (s *Std) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	op := "$stdDevPop"
	if s.Sample {
		op = "$stdDevSamp"
	}
	return compileReduction(coll, KindStd, s.Field, s.Expr, s.Safe, "std", op)
}

func (s *Sum) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	return compileReduction(coll, KindSum, s.Field, s.Expr, s.Safe, "sum", "$sum")
}

func (s *Mean) Decode(_ *Compiled, docs []bson.M) (any, error) { return decodeReduction(docs, "mean") }
func (s *Std) Decode(_ *Compiled, docs []bson.M) (any, error)  { return decodeReduction(docs, "std") }
func (s *Sum) Decode(_ *Compiled, docs []bson.M) (any, error)  { return decodeReduction(docs, "sum") }

// compileReduction groups all values into a single accumulator.
func compileReduction(coll Collection, kind Kind, field string, expr *expression.Expr, safe bool, key, op string) (*Compiled, error) {
	stages, rp, err := resolve(coll, resolveInput{field: field, expr: expr, safe: safe, unwind: UnwindAll})
	if err != nil {
		return nil, err
	}
	stages = append(stages, group(nil, accumulate(key, op, valueOf(rp))))
	return &Compiled{Kind: kind, Pipeline: stages, Resolved: rp}, nil
}

func decodeReduction(docs []bson.M, key string) (any, error) {
	d, ok := firstDoc(docs)
	if !ok {
		return float64(0), nil
	}
	return toFloat64(d[key])
}
