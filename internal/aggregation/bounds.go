package aggregation

import (
	"context"
	"math"

	"github.com/aevon-lab/docagg/internal/expression"
	"go.mongodb.org/mongo-driver/bson"
)

// Bounds computes the minimum and maximum value of a field or expression.
type Bounds struct {
	Field string
	Expr  *expression.Expr
	// Safe ignores nan and infinite values.
	Safe bool
	// CountNonfinites additionally tallies nan and infinite values.
	CountNonfinites bool

	identity
}

// BoundsResult is the result of a Bounds spec. Min and Max are nil when no
// value was found.
type BoundsResult struct {
	Min       any              `json:"min"`
	Max       any              `json:"max"`
	NonFinite *NonFiniteCounts `json:"nonfinite,omitempty"`
}

// NonFiniteCounts tallies the non-finite values seen by a Bounds spec.
type NonFiniteCounts struct {
	Inf    int64 `json:"inf"`
	NegInf int64 `json:"-inf"`
	NaN    int64 `json:"nan"`
}

var nonFiniteKeys = []struct {
	key   string
	value float64
}{
	{"inf", math.Inf(1)},
	{"-inf", math.Inf(-1)},
	{"nan", math.NaN()},
}

func (s *Bounds) Kind() Kind { return KindBounds }

func (s *Bounds) Params() []Param {
	return append(baseParams(s.Field, s.Expr, s.Safe),
		Param{Name: "count_nonfinites", Value: s.CountNonfinites})
}

func (s *Bounds) DefaultResult() any { return BoundsResult{} }

func (s *Bounds) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	stages, rp, err := resolve(coll, resolveInput{
		field:  s.Field,
		expr:   s.Expr,
		safe:   s.Safe && !s.CountNonfinites,
		unwind: UnwindAll,
	})
	if err != nil {
		return nil, err
	}

	value := valueOf(rp)
	bounded := value
	if s.Safe && s.CountNonfinites {
		bounded = finiteValue(value)
	}

	if !s.CountNonfinites {
		stages = append(stages, matchNotNull(rp.Path))
	}
	accumulators := []bson.E{
		accumulate("min", "$min", bounded),
		accumulate("max", "$max", bounded),
	}
	if s.CountNonfinites {
		for _, nf := range nonFiniteKeys {
			accumulators = append(accumulators, accumulate(nf.key, "$sum", bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$eq", Value: bson.A{value, nf.value}}}},
				{Key: "then", Value: 1},
				{Key: "else", Value: 0},
			}}}))
		}
	}
	stages = append(stages, group(nil, accumulators...))

	return &Compiled{Kind: KindBounds, Pipeline: stages, Resolved: rp}, nil
}

func (s *Bounds) Decode(c *Compiled, docs []bson.M) (any, error) {
	d, ok := firstDoc(docs)
	if !ok {
		return s.DefaultResult(), nil
	}

	ft := c.fieldType()
	lo, err := coerce(ft, d["min"])
	if err != nil {
		return nil, err
	}
	hi, err := coerce(ft, d["max"])
	if err != nil {
		return nil, err
	}
	result := BoundsResult{Min: lo, Max: hi}

	if s.CountNonfinites {
		counts := &NonFiniteCounts{}
		targets := []*int64{&counts.Inf, &counts.NegInf, &counts.NaN}
		for i, nf := range nonFiniteKeys {
			if *targets[i], err = toInt64(d[nf.key]); err != nil {
				return nil, err
			}
		}
		result.NonFinite = counts
	}
	return result, nil
}
