package aggregation

import (
	"fmt"
	"reflect"

	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func firstDoc(docs []bson.M) (bson.M, bool) {
	if len(docs) == 0 || docs[0] == nil {
		return nil, false
	}
	return docs[0], true
}

func asSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case bson.A:
		return val, true
	case []any:
		return val, true
	case []bson.M:
		out := make([]any, len(val))
		for i, d := range val {
			out[i] = d
		}
		return out, true
	}
	return nil, false
}

func asDoc(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case bson.M:
		return val, true
	case map[string]any:
		return val, true
	case bson.D:
		return val.Map(), true
	}
	return nil, false
}

// docsAt returns the documents held by a list-valued result key.
func docsAt(d map[string]any, key string) ([]map[string]any, error) {
	raw, ok := d[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := asSlice(raw)
	if !ok {
		return nil, fmt.Errorf("result key %q: expected list, got %T", key, raw)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		doc, ok := asDoc(item)
		if !ok {
			return nil, fmt.Errorf("result key %q: expected documents, got %T", key, item)
		}
		out = append(out, doc)
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	return cast.ToInt64E(v)
}

func toFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case primitive.Decimal128:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	case decimal.Decimal:
		return val.InexactFloat64(), nil
	}
	return cast.ToFloat64E(v)
}

// coerce converts a decoded value to the Go value of ft, or to its native
// Go form when no type was resolved.
func coerce(ft *schema.Field, v any) (any, error) {
	if ft == nil {
		return native(v), nil
	}
	return ft.Coerce(v)
}

// native converts driver types to plain Go values: dates to UTC times,
// decimals to decimal.Decimal and containers to maps and slices.
func native(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return val
		}
		return d
	case bson.A:
		return nativeList(val)
	case []any:
		return nativeList(val)
	case bson.M, map[string]any, bson.D:
		doc, _ := asDoc(val)
		out := make(map[string]any, len(doc))
		for k, item := range doc {
			out[k] = native(item)
		}
		return out
	}
	return v
}

func nativeList(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = native(item)
	}
	return out
}

// transform applies fn to the values nested level lists deep in v.
func transform(v any, level int, fn func(any) (any, error)) (any, error) {
	if v == nil {
		return nil, nil
	}
	if level < 1 {
		return fn(v)
	}
	items, ok := asSlice(v)
	if !ok {
		return v, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		t, err := transform(item, level-1, fn)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
