package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind is the declared type of a collection field.
type Kind string

const (
	KindString   Kind = "string"
	KindBool     Kind = "bool"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindObjectID Kind = "objectid"
	KindDecimal  Kind = "decimal"
	KindDict     Kind = "dict"
	KindList     Kind = "list"
	KindEmbedded Kind = "embedded"
)

// Field describes a declared field. List fields carry their element type in
// Elem; embedded documents carry their sub-fields in Fields.
type Field struct {
	Name   string
	Kind   Kind
	Elem   *Field
	Fields map[string]*Field
}

var kindAliases = map[string]Kind{
	"string":    KindString,
	"str":       KindString,
	"bool":      KindBool,
	"boolean":   KindBool,
	"int":       KindInt,
	"int32":     KindInt,
	"int64":     KindInt,
	"float":     KindFloat,
	"double":    KindFloat,
	"number":    KindFloat,
	"date":      KindDate,
	"datetime":  KindDateTime,
	"timestamp": KindDateTime,
	"objectid":  KindObjectID,
	"id":        KindObjectID,
	"decimal":   KindDecimal,
	"dict":      KindDict,
	"map":       KindDict,
	"any":       KindDict,
	"embedded":  KindEmbedded,
	"document":  KindEmbedded,
	"object":    KindEmbedded,
	"list":      KindList,
}

// ParseType parses a type string such as "float", "list<int>" or "[]string".
// Embedded sub-fields are attached by the caller.
func ParseType(name, typ string) (*Field, error) {
	t := strings.ToLower(strings.TrimSpace(typ))

	switch {
	case strings.HasPrefix(t, "[]"):
		elem, err := ParseType(name, t[2:])
		if err != nil {
			return nil, err
		}
		return &Field{Name: name, Kind: KindList, Elem: elem}, nil
	case strings.HasPrefix(t, "list<") && strings.HasSuffix(t, ">"):
		elem, err := ParseType(name, t[len("list<"):len(t)-1])
		if err != nil {
			return nil, err
		}
		return &Field{Name: name, Kind: KindList, Elem: elem}, nil
	}

	kind, ok := kindAliases[t]
	if !ok {
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
	return &Field{Name: name, Kind: kind}, nil
}

// IsPrimitive reports whether values of this type are returned by the
// engine in their final form and need no coercion.
func (f *Field) IsPrimitive() bool {
	switch f.Kind {
	case KindString, KindBool, KindInt, KindFloat:
		return true
	}
	return false
}

// IsList reports whether the field is a list.
func (f *Field) IsList() bool { return f.Kind == KindList }

// IsDateLike reports whether the field holds dates or datetimes.
func (f *Field) IsDateLike() bool {
	return f.Kind == KindDate || f.Kind == KindDateTime
}

// String renders the type in the same syntax ParseType accepts.
func (f *Field) String() string {
	if f.Kind == KindList && f.Elem != nil {
		return "list<" + f.Elem.String() + ">"
	}
	return string(f.Kind)
}

// Coerce converts a value returned by the engine into the Go-native value
// for this field type.
func (f *Field) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Kind {
	case KindString:
		return cast.ToStringE(v)
	case KindBool:
		return cast.ToBoolE(v)
	case KindInt:
		return cast.ToInt64E(v)
	case KindFloat:
		return cast.ToFloat64E(v)
	case KindDate:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case KindDateTime:
		return toTime(v)
	case KindObjectID:
		if oid, ok := v.(primitive.ObjectID); ok {
			return oid.Hex(), nil
		}
		return cast.ToStringE(v)
	case KindDecimal:
		return toDecimal(v)
	case KindList:
		items, ok := asList(v)
		if !ok {
			return nil, fmt.Errorf("field %s: expected list, got %T", f.Name, v)
		}
		if f.Elem == nil {
			return Plain(items), nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := f.Elem.Coerce(item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return Plain(v), nil
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC(), nil
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case primitive.Decimal128:
		return decimal.NewFromString(d.String())
	case decimal.Decimal:
		return d, nil
	case string:
		return decimal.NewFromString(d)
	case int32:
		return decimal.NewFromInt32(d), nil
	case int64:
		return decimal.NewFromInt(d), nil
	case int:
		return decimal.NewFromInt(int64(d)), nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromFloat(f), nil
}

// Plain converts driver container types (bson.M, bson.D, bson.A) into plain
// maps and slices, recursively.
func Plain(v any) any {
	switch val := v.(type) {
	case bson.M:
		return plainMap(val)
	case map[string]any:
		return plainMap(val)
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = Plain(e.Value)
		}
		return out
	case bson.A:
		return plainList(val)
	case []any:
		return plainList(val)
	default:
		return v
	}
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = Plain(item)
	}
	return out
}

func plainList(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = Plain(item)
	}
	return out
}

func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case bson.A:
		return val, true
	case []any:
		return val, true
	}
	return nil, false
}

// sortedNames returns the field names of a field map in order.
func sortedNames(fields map[string]*Field) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
