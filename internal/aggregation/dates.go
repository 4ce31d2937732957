package aggregation

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// handleDates converts date values to epoch milliseconds. It reports whether
// any value was a date. Strings are accepted in RFC 3339 form so that edges
// survive a JSON round trip.
func handleDates(values []any) ([]any, bool) {
	out := make([]any, len(values))
	isDate := false
	for i, v := range values {
		t, ok := asTime(v)
		if !ok {
			out[i] = v
			continue
		}
		isDate = true
		out[i] = t.UnixMilli()
	}
	return out, isDate
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// millisToTime converts epoch milliseconds, possibly fractional, to UTC.
func millisToTime(ms float64) time.Time {
	return time.UnixMicro(int64(math.Round(ms * 1000))).UTC()
}
