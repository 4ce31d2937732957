package aggregation

import (
	"context"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// Count counts the non-null values of a field or expression, or the
// documents of the collection when neither is given.
type Count struct {
	Field string
	Expr  *expression.Expr
	Safe  bool
	// DisableUnwind counts list values as a whole instead of per element.
	DisableUnwind bool

	identity
}

func (s *Count) Kind() Kind { return KindCount }

func (s *Count) Params() []Param {
	return append(baseParams(s.Field, s.Expr, s.Safe),
		Param{Name: "unwind", Value: !s.DisableUnwind})
}

func (s *Count) DefaultResult() any { return int64(0) }

func (s *Count) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	if s.Field == "" && s.Expr == nil {
		return &Compiled{Kind: KindCount, Pipeline: []bson.D{count("count")}}, nil
	}

	mode := UnwindAll
	if s.DisableUnwind {
		mode = UnwindNone
	}
	stages, rp, err := resolve(coll, resolveInput{field: s.Field, expr: s.Expr, safe: s.Safe, unwind: mode})
	if err != nil {
		return nil, err
	}

	if coll.MediaKind() != schema.MediaVideo || rp.Path != schema.FramesField {
		stages = append(stages, matchNotNull(rp.Path))
	}
	stages = append(stages, count("count"))

	return &Compiled{Kind: KindCount, Pipeline: stages, Resolved: rp}, nil
}

func (s *Count) Decode(_ *Compiled, docs []bson.M) (any, error) {
	d, ok := firstDoc(docs)
	if !ok {
		return s.DefaultResult(), nil
	}
	return toInt64(d["count"])
}
