package aggregation

import (
	"context"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// Sort keys of a top-k CountValues.
const (
	SortByCount = "count"
	SortByValue = "_id"
)

// CountValues counts the occurrences of each value of a field or
// expression. When First is positive only the top First values are
// returned, ranked by SortBy.
type CountValues struct {
	Field string
	Expr  *expression.Expr
	Safe  bool

	First  int
	SortBy string
	Desc   bool
	// Include pins values to the front of the ranking. The limit is
	// widened so that all of them fit.
	Include []any
	// Search keeps only values matching this regular expression.
	Search string
	// Selected values are excluded from the ranking.
	Selected []any

	identity
}

// CountValuesResult holds the counted values and the number of distinct
// values that were ranked.
type CountValuesResult struct {
	Total  int64        `json:"total"`
	Values []ValueCount `json:"values"`
}

// ValueCount is a value and its number of occurrences.
type ValueCount struct {
	Value any   `json:"value"`
	Count int64 `json:"count"`
}

func (s *CountValues) Kind() Kind { return KindCountValues }

func (s *CountValues) Params() []Param {
	var first any
	if s.First > 0 {
		first = s.First
	}
	return append(baseParams(s.Field, s.Expr, s.Safe),
		Param{Name: "first", Value: first},
		Param{Name: "sort_by", Value: s.sortBy()},
		Param{Name: "asc", Value: !s.Desc},
		Param{Name: "include", Value: listParam(s.Include)},
		Param{Name: "search", Value: s.Search},
		Param{Name: "selected", Value: listParam(s.Selected)},
	)
}

func (s *CountValues) DefaultResult() any {
	return CountValuesResult{Values: []ValueCount{}}
}

func (s *CountValues) sortBy() string {
	if s.SortBy == "" {
		return SortByCount
	}
	return s.SortBy
}

func (s *CountValues) Compile(_ context.Context, coll Collection) (*Compiled, error) {
	sortKey := s.sortBy()
	if sortKey != SortByCount && sortKey != SortByValue {
		return nil, invalidf("sort_by must be %q or %q, got %q", SortByCount, SortByValue, sortKey)
	}

	stages, rp, err := resolve(coll, resolveInput{field: s.Field, expr: s.Expr, safe: s.Safe, unwind: UnwindAll})
	if err != nil {
		return nil, err
	}

	stages = append(stages, group(valueOf(rp), accumulate("count", "$sum", 1)))

	if s.First <= 0 {
		stages = append(stages, pushKeyCounts())
		return &Compiled{Kind: KindCountValues, Pipeline: stages, Resolved: rp}, nil
	}

	var filters bson.A
	if len(s.Selected) > 0 {
		filters = append(filters, bson.D{{Key: "$not", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{"$_id", bson.A(s.Selected)}}},
		}}})
	}
	if s.Search != "" {
		filters = append(filters, bson.D{{Key: "$regexMatch", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$toString", Value: "$_id"}}},
			{Key: "regex", Value: s.Search},
		}}})
	}
	switch len(filters) {
	case 0:
	case 1:
		stages = append(stages, match(filters[0]))
	default:
		stages = append(stages, match(bson.D{{Key: "$and", Value: filters}}))
	}

	order := 1
	if s.Desc {
		order = -1
	}
	n := s.First
	var keys bson.D
	if s.Include != nil {
		n = max(n, len(s.Include))
		stages = append(stages, set(bson.E{Key: "included", Value: bson.D{
			{Key: "$in", Value: bson.A{"$_id", bson.A(s.Include)}},
		}}))
		keys = append(keys, bson.E{Key: "included", Value: -1})
	}
	secondary := SortByCount
	if sortKey == SortByCount {
		secondary = SortByValue
	}
	keys = append(keys,
		bson.E{Key: sortKey, Value: order},
		bson.E{Key: secondary, Value: order},
	)

	stages = append(stages, facet(
		bson.E{Key: "count", Value: bson.A{count("count")}},
		bson.E{Key: "result", Value: bson.A{sortBy(keys), limit(n), pushKeyCounts()}},
	))

	return &Compiled{Kind: KindCountValues, Pipeline: stages, Resolved: rp}, nil
}

func (s *CountValues) Decode(c *Compiled, docs []bson.M) (any, error) {
	d, ok := firstDoc(docs)
	if !ok {
		return s.DefaultResult(), nil
	}
	ft := c.fieldType()

	if s.First <= 0 {
		items, err := docsAt(d, "result")
		if err != nil {
			return nil, err
		}
		values, err := valueCounts(items, ft, true)
		if err != nil {
			return nil, err
		}
		return CountValuesResult{Total: int64(len(values)), Values: values}, nil
	}

	counts, err := docsAt(d, "count")
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return s.DefaultResult(), nil
	}
	total, err := toInt64(counts[0]["count"])
	if err != nil {
		return nil, err
	}

	result := CountValuesResult{Total: total, Values: []ValueCount{}}
	groups, err := docsAt(d, "result")
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		items, err := docsAt(groups[0], "result")
		if err != nil {
			return nil, err
		}
		if result.Values, err = valueCounts(items, ft, false); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// valueCounts decodes pushed {k, count} pairs. Null keys are dropped unless
// keepNull is set.
func valueCounts(items []map[string]any, ft *schema.Field, keepNull bool) ([]ValueCount, error) {
	out := make([]ValueCount, 0, len(items))
	for _, item := range items {
		k := item["k"]
		if k == nil && !keepNull {
			continue
		}
		v, err := coerce(ft, k)
		if err != nil {
			return nil, err
		}
		n, err := toInt64(item["count"])
		if err != nil {
			return nil, err
		}
		out = append(out, ValueCount{Value: v, Count: n})
	}
	return out, nil
}
