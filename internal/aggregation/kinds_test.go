package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func compile(t *testing.T, s Spec, coll Collection) *Compiled {
	t.Helper()
	c, err := s.Compile(context.Background(), coll)
	require.NoError(t, err)
	require.Equal(t, s.Kind(), c.Kind)
	return c
}

func TestCount(t *testing.T) {
	coll := newTestCollection(schema.MediaImage)

	t.Run("documents", func(t *testing.T) {
		s := &Count{}
		c := compile(t, s, coll)
		require.Equal(t, []bson.D{count("count")}, c.Pipeline)

		got, err := s.Decode(c, []bson.M{{"count": int32(5)}})
		require.NoError(t, err)
		require.Equal(t, int64(5), got)
	})

	t.Run("field values", func(t *testing.T) {
		s := &Count{Field: "x"}
		c := compile(t, s, coll)
		require.Equal(t, []bson.D{keep("x"), matchNotNull("x"), count("count")}, c.Pipeline)
	})

	t.Run("list elements", func(t *testing.T) {
		c := compile(t, &Count{Field: "tags"}, coll)
		require.Equal(t, []bson.D{keep("tags"), unwind("tags"), matchNotNull("tags"), count("count")}, c.Pipeline)

		c = compile(t, &Count{Field: "tags", DisableUnwind: true}, coll)
		require.Equal(t, []bson.D{matchNotNull("tags"), count("count")}, c.Pipeline)
	})

	t.Run("frames of a video collection", func(t *testing.T) {
		video := newTestCollection(schema.MediaVideo)
		c := compile(t, &Count{Field: "frames"}, video)
		require.Equal(t, []bson.D{unwind("frames"), count("count")}, c.Pipeline)
	})

	t.Run("no documents", func(t *testing.T) {
		s := &Count{}
		got, err := s.Decode(compile(t, s, coll), nil)
		require.NoError(t, err)
		require.Equal(t, int64(0), got)
	})
}

func TestBounds(t *testing.T) {
	coll := newTestCollection(schema.MediaImage)

	t.Run("float field", func(t *testing.T) {
		s := &Bounds{Field: "confidence"}
		c := compile(t, s, coll)
		require.Equal(t, []bson.D{
			keep("confidence"),
			matchNotNull("confidence"),
			group(nil,
				accumulate("min", "$min", "$confidence"),
				accumulate("max", "$max", "$confidence"),
			),
		}, c.Pipeline)

		got, err := s.Decode(c, []bson.M{{"_id": nil, "min": 0.1, "max": 0.9}})
		require.NoError(t, err)
		require.Equal(t, BoundsResult{Min: 0.1, Max: 0.9}, got)
	})

	t.Run("datetime field coerced", func(t *testing.T) {
		lo := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		hi := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		s := &Bounds{Field: "created"}
		c := compile(t, s, coll)

		got, err := s.Decode(c, []bson.M{{
			"min": primitive.NewDateTimeFromTime(lo),
			"max": primitive.NewDateTimeFromTime(hi),
		}})
		require.NoError(t, err)
		res := got.(BoundsResult)
		require.True(t, lo.Equal(res.Min.(time.Time)))
		require.True(t, hi.Equal(res.Max.(time.Time)))
	})

	t.Run("safe with nonfinite counts", func(t *testing.T) {
		s := &Bounds{Field: "confidence", Safe: true, CountNonfinites: true}
		c := compile(t, s, coll)
		require.Equal(t, []string{"$project", "$group"}, stageNames(c.Pipeline))

		body := c.Pipeline[1][0].Value.(bson.D)
		keys := make([]string, len(body))
		for i, e := range body {
			keys[i] = e.Key
		}
		require.Equal(t, []string{"_id", "min", "max", "inf", "-inf", "nan"}, keys)

		got, err := s.Decode(c, []bson.M{{
			"min": 1.0, "max": 1.0,
			"inf": int32(1), "-inf": int32(0), "nan": int32(1),
		}})
		require.NoError(t, err)
		require.Equal(t, BoundsResult{
			Min:       1.0,
			Max:       1.0,
			NonFinite: &NonFiniteCounts{Inf: 1, NegInf: 0, NaN: 1},
		}, got)
	})

	t.Run("no values", func(t *testing.T) {
		s := &Bounds{Field: "confidence"}
		got, err := s.Decode(compile(t, s, coll), nil)
		require.NoError(t, err)
		require.Equal(t, BoundsResult{}, got)
	})
}

func TestDistinct(t *testing.T) {
	coll := newTestCollection(schema.MediaImage)
	s := &Distinct{Field: "tags"}
	c := compile(t, s, coll)

	require.Equal(t, []bson.D{
		keep("tags"),
		unwind("tags"),
		matchNotNull("tags"),
		group(nil, accumulate("values", "$addToSet", "$tags")),
		unwind("values"),
		sortBy(bson.D{{Key: "values", Value: 1}}),
		group(nil, accumulate("values", "$push", "$values")),
	}, c.Pipeline)

	got, err := s.Decode(c, []bson.M{{"values": bson.A{"cat", "dog"}}})
	require.NoError(t, err)
	require.Equal(t, []any{"cat", "dog"}, got)

	got, err = s.Decode(c, nil)
	require.NoError(t, err)
	require.Equal(t, []any{}, got)
}

func TestHistogramValues(t *testing.T) {
	t.Run("explicit edges", func(t *testing.T) {
		coll := newTestCollection(schema.MediaImage)
		s := &HistogramValues{Field: "confidence", Edges: []any{0, 1, 2, 3}}
		c := compile(t, s, coll)

		require.Equal(t, []bson.D{
			keep("confidence"),
			{{Key: "$bucket", Value: bson.D{
				{Key: "groupBy", Value: "$confidence"},
				{Key: "boundaries", Value: bson.A{0, 1, 2, 3}},
				{Key: "default", Value: "other"},
				{Key: "output", Value: countOne()},
			}}},
			group(nil, accumulate("bins", "$push", "$$ROOT")),
		}, c.Pipeline)
		require.Zero(t, coll.boundsCalls)

		got, err := s.Decode(c, []bson.M{{"bins": bson.A{
			bson.M{"_id": int32(0), "count": int32(1)},
			bson.M{"_id": int32(1), "count": int32(2)},
			bson.M{"_id": "other", "count": int32(1)},
		}}})
		require.NoError(t, err)
		require.Equal(t, HistogramResult{
			Counts: []int64{1, 2, 0},
			Edges:  []any{0, 1, 2, 3},
			Other:  1,
		}, got)
	})

	t.Run("edges from bounds", func(t *testing.T) {
		coll := newTestCollection(schema.MediaImage)
		coll.min, coll.max = 0.0, 1.0
		c := compile(t, &HistogramValues{Field: "confidence", Bins: 4}, coll)

		require.Equal(t, 1, coll.boundsCalls)
		require.Len(t, c.Edges, 5)
		require.Equal(t, 0.0, c.Edges[0])
		require.InDelta(t, 0.25, c.Edges[1].(float64), 1e-6)
		require.InDelta(t, 1.0+1e-6, c.Edges[4].(float64), 1e-12)
		require.False(t, c.Datetime)
	})

	t.Run("large bounds keep edges increasing", func(t *testing.T) {
		tests := []struct {
			name     string
			min, max float64
		}{
			{name: "constant field", min: 3e10, max: 3e10},
			{name: "wide range", min: 0, max: 2e10},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				coll := newTestCollection(schema.MediaImage)
				coll.min, coll.max = tc.min, tc.max
				c := compile(t, &HistogramValues{Field: "confidence", Bins: 4}, coll)

				require.Len(t, c.Edges, 5)
				require.NoError(t, checkIncreasing(c.Edges))
				require.Equal(t, tc.min, c.Edges[0])
				require.Greater(t, c.Edges[4].(float64), tc.max)
			})
		}
	})

	t.Run("no values yields placeholder edges", func(t *testing.T) {
		coll := newTestCollection(schema.MediaImage)
		c := compile(t, &HistogramValues{Field: "confidence"}, coll)

		require.Len(t, c.Edges, DefaultBins+1)
		require.Equal(t, -1.0, c.Edges[0])
		require.InDelta(t, -1.0+1e-6, c.Edges[DefaultBins].(float64), 1e-12)
	})

	t.Run("date range", func(t *testing.T) {
		coll := newTestCollection(schema.MediaImage)
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.Add(48 * time.Hour)
		s := &HistogramValues{Field: "created", Bins: 2, Range: []any{start, end}}
		c := compile(t, s, coll)

		require.True(t, c.Datetime)
		bucket := c.Pipeline[1][0].Value.(bson.D)
		boundaries := bucket[1].Value.(bson.A)
		require.Len(t, boundaries, 3)
		require.Equal(t, bson.D{{Key: "$toDate", Value: float64(start.UnixMilli())}}, boundaries[0])

		got, err := s.Decode(c, []bson.M{{"bins": bson.A{
			bson.M{"_id": primitive.NewDateTimeFromTime(start.Add(24 * time.Hour)), "count": int32(4)},
		}}})
		require.NoError(t, err)
		res := got.(HistogramResult)
		require.Equal(t, []int64{0, 4}, res.Counts)
		require.Len(t, res.Edges, 3)
		require.True(t, start.Equal(res.Edges[0].(time.Time)))
		require.True(t, start.Add(24*time.Hour).Equal(res.Edges[1].(time.Time)))
		require.True(t, end.Equal(res.Edges[2].(time.Time)))
	})

	t.Run("auto buckets", func(t *testing.T) {
		coll := newTestCollection(schema.MediaImage)
		s := &HistogramValues{Field: "confidence", Bins: 2, Auto: true}
		c := compile(t, s, coll)
		require.Equal(t, []string{"$project", "$bucketAuto", "$group"}, stageNames(c.Pipeline))
		require.Zero(t, coll.boundsCalls)

		got, err := s.Decode(c, []bson.M{{"bins": bson.A{
			bson.M{"_id": bson.M{"min": 0.0, "max": 0.4}, "count": int32(2)},
			bson.M{"_id": bson.M{"min": 0.4, "max": 0.9}, "count": int32(3)},
		}}})
		require.NoError(t, err)
		require.Equal(t, HistogramResult{
			Counts: []int64{2, 3},
			Edges:  []any{0.0, 0.4, 0.9},
		}, got)
	})

	t.Run("invalid bins", func(t *testing.T) {
		coll := newTestCollection(schema.MediaImage)
		for _, s := range []*HistogramValues{
			{Field: "confidence", Edges: []any{1, 0}},
			{Field: "confidence", Edges: []any{1}},
			{Field: "confidence", Range: []any{1}},
			{Field: "confidence", Range: []any{1, 1}},
		} {
			_, err := s.Compile(context.Background(), coll)
			require.ErrorIs(t, err, ErrInvalidSpecification)
		}
	})
}

func TestCountValues(t *testing.T) {
	coll := newTestCollection(schema.MediaImage)

	t.Run("all values", func(t *testing.T) {
		s := &CountValues{Field: "tags"}
		c := compile(t, s, coll)
		require.Equal(t, []bson.D{
			keep("tags"),
			unwind("tags"),
			group("$tags", accumulate("count", "$sum", 1)),
			pushKeyCounts(),
		}, c.Pipeline)

		got, err := s.Decode(c, []bson.M{{"result": bson.A{
			bson.M{"k": nil, "count": int32(1)},
			bson.M{"k": "cat", "count": int32(2)},
		}}})
		require.NoError(t, err)
		require.Equal(t, CountValuesResult{Total: 2, Values: []ValueCount{
			{Value: nil, Count: 1},
			{Value: "cat", Count: 2},
		}}, got)
	})

	t.Run("top values with filters", func(t *testing.T) {
		s := &CountValues{
			Field:    "tags",
			First:    2,
			Desc:     true,
			Include:  []any{"dog"},
			Search:   "^c",
			Selected: []any{"cow"},
		}
		c := compile(t, s, coll)
		require.Equal(t, []string{"$project", "$unwind", "$group", "$match", "$set", "$facet"}, stageNames(c.Pipeline))

		require.Equal(t, match(bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$not", Value: bson.A{bson.D{{Key: "$in", Value: bson.A{"$_id", bson.A{"cow"}}}}}}},
			bson.D{{Key: "$regexMatch", Value: bson.D{
				{Key: "input", Value: bson.D{{Key: "$toString", Value: "$_id"}}},
				{Key: "regex", Value: "^c"},
			}}},
		}}}), c.Pipeline[3])

		require.Equal(t, facet(
			bson.E{Key: "count", Value: bson.A{count("count")}},
			bson.E{Key: "result", Value: bson.A{
				sortBy(bson.D{{Key: "included", Value: -1}, {Key: "count", Value: -1}, {Key: "_id", Value: -1}}),
				limit(2),
				pushKeyCounts(),
			}},
		), c.Pipeline[5])

		got, err := s.Decode(c, []bson.M{{
			"count": bson.A{bson.M{"count": int32(3)}},
			"result": bson.A{bson.M{"_id": nil, "result": bson.A{
				bson.M{"k": "dog", "count": int32(1)},
				bson.M{"k": nil, "count": int32(7)},
				bson.M{"k": "cat", "count": int32(5)},
			}}},
		}})
		require.NoError(t, err)
		require.Equal(t, CountValuesResult{Total: 3, Values: []ValueCount{
			{Value: "dog", Count: 1},
			{Value: "cat", Count: 5},
		}}, got)
	})

	t.Run("include widens limit", func(t *testing.T) {
		s := &CountValues{Field: "tags", First: 1, SortBy: SortByValue, Include: []any{"a", "b", "c"}}
		c := compile(t, s, coll)
		branches := c.Pipeline[len(c.Pipeline)-1][0].Value.(bson.D)
		result := branches[1].Value.(bson.A)
		require.Equal(t, sortBy(bson.D{{Key: "included", Value: -1}, {Key: "_id", Value: 1}, {Key: "count", Value: 1}}), result[0])
		require.Equal(t, limit(3), result[1])
	})

	t.Run("empty collection", func(t *testing.T) {
		s := &CountValues{Field: "tags", First: 5}
		c := compile(t, s, coll)
		got, err := s.Decode(c, []bson.M{{"count": bson.A{}, "result": bson.A{}}})
		require.NoError(t, err)
		require.Equal(t, CountValuesResult{Values: []ValueCount{}}, got)
	})

	t.Run("invalid sort key", func(t *testing.T) {
		_, err := (&CountValues{Field: "tags", First: 1, SortBy: "label"}).Compile(context.Background(), coll)
		require.ErrorIs(t, err, ErrInvalidSpecification)
	})
}

func TestValues(t *testing.T) {
	coll := newTestCollection(schema.MediaImage)
	notNull := func(ref string, then any, missing any) bson.D {
		return bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$gt", Value: bson.A{ref, nil}}}},
			{Key: "then", Value: then},
			{Key: "else", Value: missing},
		}}}
	}

	t.Run("streamed with missing value", func(t *testing.T) {
		s := &Values{Field: "confidence", MissingValue: "N/A"}
		c := compile(t, s, coll)
		require.Equal(t, DefaultBigField, c.BigField)
		require.Equal(t, []bson.D{
			project(bson.E{Key: "values", Value: notNull("$confidence", "$confidence", "N/A")}),
		}, c.Pipeline)

		got, err := s.Decode(c, []bson.M{{"values": 0.5}, {"values": "N/A"}})
		require.NoError(t, err)
		require.Equal(t, []any{0.5, "N/A"}, got)
	})

	t.Run("single document", func(t *testing.T) {
		s := &Values{Field: "confidence", MissingValue: "N/A", SingleDocument: true}
		c := compile(t, s, coll)
		require.Empty(t, c.BigField)
		require.Equal(t, []bson.D{
			project(bson.E{Key: "value", Value: notNull("$confidence", "$confidence", "N/A")}),
			group(nil, accumulate("values", "$push", "$value")),
		}, c.Pipeline)

		got, err := s.Decode(c, []bson.M{{"values": bson.A{0.5, "N/A"}}})
		require.NoError(t, err)
		require.Equal(t, []any{0.5, "N/A"}, got)

		got, err = s.Decode(c, nil)
		require.NoError(t, err)
		require.Equal(t, []any{}, got)
	})

	t.Run("ids as strings", func(t *testing.T) {
		c := compile(t, &Values{Field: "id"}, coll)
		require.Equal(t, []bson.D{
			project(bson.E{Key: "values", Value: notNull("$_id", bson.D{{Key: "$toString", Value: "$_id"}}, nil)}),
		}, c.Pipeline)
	})

	t.Run("terminal list kept and coerced", func(t *testing.T) {
		s := &Values{Field: "tags"}
		c := compile(t, s, coll)
		got, err := s.Decode(c, []bson.M{{"values": bson.A{"a", "b"}}, {"values": nil}})
		require.NoError(t, err)
		require.Equal(t, []any{[]any{"a", "b"}, nil}, got)
	})

	t.Run("datetimes coerced", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		s := &Values{Field: "created"}
		c := compile(t, s, coll)
		got, err := s.Decode(c, []bson.M{{"values": primitive.NewDateTimeFromTime(ts)}})
		require.NoError(t, err)
		values := got.([]any)
		require.True(t, ts.Equal(values[0].(time.Time)))

		s.Raw = true
		got, err = s.Decode(c, []bson.M{{"values": primitive.NewDateTimeFromTime(ts)}})
		require.NoError(t, err)
		require.Equal(t, []any{primitive.NewDateTimeFromTime(ts)}, got)
	})

	t.Run("frame field keeping top level", func(t *testing.T) {
		video := newTestCollection(schema.MediaVideo)
		c := compile(t, &Values{Field: "frames.objects.label", Unwind: UnwindAllButTop}, video)
		require.Equal(t, []string{"$project", "$set", "$project"}, stageNames(c.Pipeline))
		require.Equal(t, 1, c.ListDepth)

		last := c.Pipeline[2][0].Value.(bson.D)
		require.Equal(t, "values", last[0].Key)
		require.Equal(t, "$map", last[0].Value.(bson.D)[0].Key)
	})

	t.Run("custom big field", func(t *testing.T) {
		s := &Values{Field: "x"}
		c, err := s.CompileWithField(context.Background(), coll, "value3")
		require.NoError(t, err)
		require.Equal(t, "value3", c.BigField)

		got, err := s.Decode(c, []bson.M{{"value3": int32(4)}})
		require.NoError(t, err)
		require.Equal(t, []any{int32(4)}, got)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := (&Values{Field: "extra"}).Compile(context.Background(), coll)
		require.ErrorIs(t, err, ErrFieldNotFound)

		c := compile(t, &Values{Field: "extra", AllowMissing: true}, coll)
		require.Len(t, c.Pipeline, 1)
	})
}

func TestValuesBigBatchable(t *testing.T) {
	e := expression.F("x").Add(1)
	tests := []struct {
		name string
		spec *Values
		want bool
	}{
		{name: "plain field", spec: &Values{Field: "x"}, want: true},
		{name: "single document", spec: &Values{Field: "x", SingleDocument: true}, want: false},
		{name: "unwound", spec: &Values{Field: "tags", Unwind: UnwindAll}, want: false},
		{name: "explicit unwind", spec: &Values{Field: "tags[]"}, want: false},
		{name: "expression", spec: &Values{Expr: &e}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.spec.BigBatchable())
		})
	}
}

func TestReductions(t *testing.T) {
	coll := newTestCollection(schema.MediaImage)

	t.Run("mean of an expression over a list", func(t *testing.T) {
		s := &Mean{Expr: exprPtr(expression.F("ground_truth.detections.confidence").Multiply(2))}
		c := compile(t, s, coll)
		require.Equal(t, []string{"$set", "$project", "$unwind", "$group"}, stageNames(c.Pipeline))
		require.Equal(t,
			group(nil, accumulate("mean", "$avg", "$ground_truth.detections.confidence")),
			c.Pipeline[3])

		got, err := s.Decode(c, []bson.M{{"mean": 0.75}})
		require.NoError(t, err)
		require.Equal(t, 0.75, got)
	})

	t.Run("sum of a root expression", func(t *testing.T) {
		s := &Sum{Expr: exprPtr(expression.F("x").Add(expression.F("confidence")))}
		c := compile(t, s, coll)
		require.Equal(t, []bson.D{
			set(bson.E{Key: "value", Value: bson.D{{Key: "$add", Value: bson.A{"$x", "$confidence"}}}}),
			keep("value"),
			group(nil, accumulate("sum", "$sum", "$value")),
		}, c.Pipeline)

		got, err := s.Decode(c, []bson.M{{"sum": int64(12)}})
		require.NoError(t, err)
		require.Equal(t, 12.0, got)
	})

	t.Run("std", func(t *testing.T) {
		c := compile(t, &Std{Field: "x"}, coll)
		require.Equal(t, group(nil, accumulate("std", "$stdDevPop", "$x")), c.Pipeline[len(c.Pipeline)-1])

		c = compile(t, &Std{Field: "x", Sample: true}, coll)
		require.Equal(t, group(nil, accumulate("std", "$stdDevSamp", "$x")), c.Pipeline[len(c.Pipeline)-1])
	})

	t.Run("null and empty results", func(t *testing.T) {
		s := &Mean{Field: "x"}
		c := compile(t, s, coll)

		got, err := s.Decode(c, []bson.M{{"mean": nil}})
		require.NoError(t, err)
		require.Equal(t, 0.0, got)

		got, err = s.Decode(c, nil)
		require.NoError(t, err)
		require.Equal(t, 0.0, got)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := (&Mean{}).Compile(context.Background(), coll)
		require.ErrorIs(t, err, ErrInvalidSpecification)

		_, err = (&Sum{Field: "nope"}).Compile(context.Background(), coll)
		require.ErrorIs(t, err, ErrFieldNotFound)
	})
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Spec
		want bool
	}{
		{name: "same params", a: &Mean{Field: "x"}, b: &Mean{Field: "x"}, want: true},
		{name: "different field", a: &Mean{Field: "x"}, b: &Mean{Field: "y"}, want: false},
		{name: "different kind", a: &Mean{Field: "x"}, b: &Sum{Field: "x"}, want: false},
		{
			name: "numeric widths ignored",
			a:    &HistogramValues{Field: "x", Edges: []any{0, 1}},
			b:    &HistogramValues{Field: "x", Edges: []any{int64(0), int64(1)}},
			want: true,
		},
		{
			name: "expressions compared structurally",
			a:    &Sum{Expr: exprPtr(expression.F("x").Multiply(2))},
			b:    &Sum{Expr: exprPtr(expression.F("x").Multiply(int64(2)))},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestIdentity(t *testing.T) {
	a, b := &Count{}, &Count{}
	require.NotEmpty(t, a.ID())
	require.Equal(t, a.ID(), a.ID())
	require.NotEqual(t, a.ID(), b.ID())
	require.True(t, Equal(a, b))
}
