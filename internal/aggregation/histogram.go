package aggregation

import (
	"context"
	"fmt"
	"math"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultBins is the number of histogram bins used when none is given.
const DefaultBins = 10

// otherBucket labels the values outside all explicit boundaries.
const otherBucket = "other"

// HistogramValues computes a histogram of a field or expression.
//
// Edges, when set, are used as the bucket boundaries. Otherwise Bins
// equal-width bins span Range, or the bounds of the values when no range is
// given. With Auto the engine picks Bins boundaries holding roughly equal
// numbers of values.
type HistogramValues struct {
	Field string
	Expr  *expression.Expr
	Bins  int
	Edges []any
	Range []any
	Auto  bool

	identity
}

// HistogramResult holds the bin counts, the len(Counts)+1 bin edges and the
// number of values outside all bins. Each bin includes its lower edge and
// excludes its upper edge.
type HistogramResult struct {
	Counts []int64 `json:"counts"`
	Edges  []any   `json:"edges"`
	Other  int64   `json:"other"`
}

func (s *HistogramValues) Kind() Kind { return KindHistogramValues }

func (s *HistogramValues) Params() []Param {
	var bins any
	switch {
	case s.Edges != nil:
		bins = listParam(s.Edges)
	case s.Bins > 0:
		bins = s.Bins
	}
	return []Param{
		{Name: "field_or_expr", Value: fieldParam(s.Field)},
		{Name: "expr", Value: exprParam(s.Expr)},
		{Name: "bins", Value: bins},
		{Name: "range", Value: listParam(s.Range)},
		{Name: "auto", Value: s.Auto},
	}
}

func (s *HistogramValues) DefaultResult() any {
	return HistogramResult{Counts: []int64{}, Edges: []any{}}
}

func (s *HistogramValues) numBins() int {
	if s.Bins > 0 {
		return s.Bins
	}
	return DefaultBins
}

func (s *HistogramValues) Compile(ctx context.Context, coll Collection) (*Compiled, error) {
	if s.Range != nil && len(s.Range) != 2 {
		return nil, invalidf("range must hold two values, got %d", len(s.Range))
	}

	stages, rp, err := resolve(coll, resolveInput{field: s.Field, expr: s.Expr, unwind: UnwindAll})
	if err != nil {
		return nil, err
	}
	c := &Compiled{Kind: KindHistogramValues, Resolved: rp}
	value := valueOf(rp)

	if s.Auto {
		stages = append(stages, bson.D{{Key: "$bucketAuto", Value: bson.D{
			{Key: "groupBy", Value: value},
			{Key: "buckets", Value: s.numBins()},
			{Key: "output", Value: countOne()},
		}}})
	} else {
		if c.Edges, c.Datetime, err = s.edges(ctx, coll); err != nil {
			return nil, err
		}
		boundaries := make(bson.A, len(c.Edges))
		for i, e := range c.Edges {
			if c.Datetime {
				boundaries[i] = bson.D{{Key: "$toDate", Value: e}}
			} else {
				boundaries[i] = e
			}
		}
		stages = append(stages, bson.D{{Key: "$bucket", Value: bson.D{
			{Key: "groupBy", Value: value},
			{Key: "boundaries", Value: boundaries},
			{Key: "default", Value: otherBucket},
			{Key: "output", Value: countOne()},
		}}})
	}

	stages = append(stages, group(nil, accumulate("bins", "$push", "$$ROOT")))
	c.Pipeline = stages
	return c, nil
}

// edges returns the bucket boundaries, computing them from the bounds of
// the values when neither explicit edges nor a range is given.
func (s *HistogramValues) edges(ctx context.Context, coll Collection) ([]any, bool, error) {
	if s.Edges != nil {
		edges, isDate := handleDates(s.Edges)
		if err := checkIncreasing(edges); err != nil {
			return nil, false, err
		}
		return edges, isDate, nil
	}

	if s.Range != nil {
		r, isDate := handleDates(s.Range)
		lo, hi, err := floatPair(r)
		if err != nil {
			return nil, false, err
		}
		if hi <= lo {
			return nil, false, invalidf("range upper bound must exceed lower bound")
		}
		return linspace(lo, hi, s.numBins()), isDate, nil
	}

	lo, hi, err := coll.Bounds(ctx, s.Field, s.Expr, true)
	if err != nil {
		return nil, false, fmt.Errorf("compute histogram bounds: %w", err)
	}
	bounds := []any{lo, hi}
	if lo == nil || hi == nil {
		bounds = []any{-1, -1}
	}
	b, isDate := handleDates(bounds)
	loF, hiF, err := floatPair(b)
	if err != nil {
		return nil, false, err
	}
	minWiden := 1e-6
	if isDate {
		minWiden = 1
	}
	edges := linspace(loF, widenUpper(hiF, s.numBins(), minWiden), s.numBins())
	if err := checkIncreasing(edges); err != nil {
		return nil, false, err
	}
	return edges, isDate, nil
}

// widenUpper moves hi up so that the maximum falls inside the last bin. The
// widening is at least minWiden and at least 4*bins float steps at hi, so
// equal-width edges stay distinct at large magnitudes.
func widenUpper(hi float64, bins int, minWiden float64) float64 {
	mag := math.Abs(hi)
	ulp := math.Nextafter(mag, math.Inf(1)) - mag
	return hi + math.Max(minWiden, 4*float64(bins)*ulp)
}

func (s *HistogramValues) Decode(c *Compiled, docs []bson.M) (any, error) {
	d, ok := firstDoc(docs)
	if !ok {
		return s.DefaultResult(), nil
	}
	bins, err := docsAt(d, "bins")
	if err != nil {
		return nil, err
	}
	if s.Auto {
		return s.decodeAuto(c, bins)
	}

	edges := make([]float64, len(c.Edges))
	for i, e := range c.Edges {
		if edges[i], err = cast.ToFloat64E(e); err != nil {
			return nil, err
		}
	}

	counts := make([]int64, max(len(edges)-1, 0))
	var other int64
	for _, bin := range bins {
		n, err := toInt64(bin["count"])
		if err != nil {
			return nil, err
		}
		if id, ok := bin["_id"].(string); ok && id == otherBucket {
			other = n
			continue
		}
		left, err := edgeValue(bin["_id"])
		if err != nil {
			return nil, err
		}
		if idx := nearest(edges, left); idx < len(counts) {
			counts[idx] = n
		}
	}

	out, err := s.outputEdges(c, c.Edges)
	if err != nil {
		return nil, err
	}
	return HistogramResult{Counts: counts, Edges: out, Other: other}, nil
}

func (s *HistogramValues) decodeAuto(c *Compiled, bins []map[string]any) (any, error) {
	if len(bins) == 0 {
		return s.DefaultResult(), nil
	}
	counts := make([]int64, 0, len(bins))
	edges := make([]any, 0, len(bins)+1)
	for _, bin := range bins {
		n, err := toInt64(bin["count"])
		if err != nil {
			return nil, err
		}
		id, ok := asDoc(bin["_id"])
		if !ok {
			return nil, fmt.Errorf("bucket id: expected document, got %T", bin["_id"])
		}
		counts = append(counts, n)
		edges = append(edges, id["min"])
		if len(edges) == len(bins) {
			edges = append(edges, id["max"])
		}
	}

	out, err := s.outputEdges(c, edges)
	if err != nil {
		return nil, err
	}
	return HistogramResult{Counts: counts, Edges: out}, nil
}

// outputEdges converts edges back to dates, or to the field type.
func (s *HistogramValues) outputEdges(c *Compiled, edges []any) ([]any, error) {
	out := make([]any, len(edges))
	for i, e := range edges {
		if c.Datetime {
			ms, err := cast.ToFloat64E(e)
			if err != nil {
				return nil, err
			}
			out[i] = millisToTime(ms)
			continue
		}
		v, err := coerce(c.fieldType(), e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// edgeValue maps a bucket's lower boundary onto the numeric edge scale.
func edgeValue(v any) (float64, error) {
	if t, ok := asTime(v); ok {
		return float64(t.UnixMilli()), nil
	}
	return toFloat64(v)
}

func nearest(edges []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, e := range edges {
		if d := math.Abs(e - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// linspace returns n+1 evenly spaced edges from lo to hi inclusive.
func linspace(lo, hi float64, n int) []any {
	out := make([]any, n+1)
	step := (hi - lo) / float64(n)
	for i := 0; i < n; i++ {
		out[i] = lo + float64(i)*step
	}
	out[n] = hi
	return out
}

func floatPair(values []any) (float64, float64, error) {
	lo, err := toFloat64(values[0])
	if err != nil {
		return 0, 0, invalidf("bound %v: %v", values[0], err)
	}
	hi, err := toFloat64(values[1])
	if err != nil {
		return 0, 0, invalidf("bound %v: %v", values[1], err)
	}
	return lo, hi, nil
}

func checkIncreasing(edges []any) error {
	if len(edges) < 2 {
		return invalidf("at least two bin edges are required")
	}
	prev := math.Inf(-1)
	for _, e := range edges {
		f, err := toFloat64(e)
		if err != nil {
			return invalidf("bin edge %v: %v", e, err)
		}
		if f <= prev {
			return invalidf("bin edges must be strictly increasing")
		}
		prev = f
	}
	return nil
}
