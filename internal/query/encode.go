package query

import (
	"math"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"go.mongodb.org/mongo-driver/bson"
)

// jsonSafe replaces non-finite floats, which encoding/json rejects, with
// the strings "nan", "inf" and "-inf".
func jsonSafe(v any) any {
	switch val := v.(type) {
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	case bson.A:
		return jsonSafe([]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case bson.M:
		return jsonSafe(map[string]any(val))
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = jsonSafe(e.Value)
		}
		return out
	case aggregation.BoundsResult:
		val.Min = jsonSafe(val.Min)
		val.Max = jsonSafe(val.Max)
		return val
	case aggregation.HistogramResult:
		edges := make([]any, len(val.Edges))
		for i, e := range val.Edges {
			edges[i] = jsonSafe(e)
		}
		val.Edges = edges
		return val
	case aggregation.CountValuesResult:
		values := make([]aggregation.ValueCount, len(val.Values))
		for i, vc := range val.Values {
			values[i] = aggregation.ValueCount{Value: jsonSafe(vc.Value), Count: vc.Count}
		}
		val.Values = values
		return val
	}
	return v
}

func finite(f float64) any {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return f
}
