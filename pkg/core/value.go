// Package core is the store-agnostic document layer: change-tracked
// documents, query-bound collections, and the capability interfaces
// the adapters implement.
package core

import "time"

// FieldMap is the central value shape of the domain, the flexible
// field-value pairs of a document. Values are strings, numbers,
// booleans, nil, time.Time, Timestamp, nested FieldMap/map[string]any,
// or slices of these.
type FieldMap = map[string]any

// Timestamp is the store-native representation of a point in time.
// Adapters persist this shape; the codec converts time.Time values to
// and from it. Precision is capped at the nanosecond field, and deep
// equality treats timestamps equal at millisecond granularity.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// NewTimestamp converts a time.Time to the store representation.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// UnixMilli returns the timestamp at millisecond precision.
func (ts Timestamp) UnixMilli() int64 {
	return ts.Seconds*1000 + int64(ts.Nanos)/1e6
}

type deleteSentinel struct{}

// Delete is the sentinel meaning "remove this field on the next write".
// It is distinct from nil (which stores a null) and from absence.
// Adapters honor it in Patch payloads by removing the field server-side.
var Delete any = deleteSentinel{}

// IsDelete reports whether v is the field-delete sentinel.
func IsDelete(v any) bool {
	_, ok := v.(deleteSentinel)
	return ok
}

// DeepCopy returns a structural copy of v. Maps and slices are copied
// recursively; all other values (including time.Time and Timestamp) are
// value types and pass through.
func DeepCopy(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = DeepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}

// CopyFields deep-copies a FieldMap, tolerating nil.
func CopyFields(fields FieldMap) FieldMap {
	if fields == nil {
		return nil
	}
	return DeepCopy(fields).(map[string]any)
}

// DeepEqual compares two values structurally. Date-like values
// (time.Time and Timestamp, in any combination) compare by their
// millisecond instant, so content reloaded through the store compares
// equal to the original even though the concrete type changed.
// Numeric values compare by magnitude across int/int64/float64 so that
// JSON round-trips do not produce spurious differences.
func DeepEqual(a, b any) bool {
	if am, aok := asMillis(a); aok {
		bm, bok := asMillis(b)
		return bok && am == bm
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, e := range av {
			be, present := bv[k]
			if !present || !DeepEqual(e, be) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, e := range av {
			if !DeepEqual(e, bv[i]) {
				return false
			}
		}
		return true
	}

	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}

	return a == b
}

func asMillis(v any) (int64, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv.UnixMilli(), true
	case Timestamp:
		return tv.UnixMilli(), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case float32:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}
