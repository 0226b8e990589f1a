package core

import (
	"sort"
	"strings"
)

// Op is a where-clause comparison operator.
type Op string

// Supported where operators.
const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

// Where is a single AND-ed filter condition.
type Where struct {
	Field string
	Op    Op
	Value any
}

// Order is the single-field ordering clause.
type Order struct {
	Field string
	Desc  bool
}

// QuerySpec describes one collection query: filters, ordering, limits,
// and cursors. Adapters either translate it to native query machinery
// or load the collection and call Apply.
type QuerySpec struct {
	Path        string
	Wheres      []Where
	OrderBy     *Order
	Limit       int
	LimitToLast int

	// Cursors operate on the order-by field value (or the document id
	// when no ordering is set).
	StartAt     any
	StartAfter  any
	EndAt       any
	EndBefore   any
}

// Apply evaluates the spec against an unordered snapshot list. Results
// come back filtered, ordered, cursor-windowed, and limited. Documents
// missing the order-by field sort first.
func (q QuerySpec) Apply(snaps []DocSnapshot) []DocSnapshot {
	out := make([]DocSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if q.matches(s) {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci := compareValues(q.sortValue(out[i]), q.sortValue(out[j]))
		if ci == 0 {
			ci = strings.Compare(out[i].ID, out[j].ID)
		}
		if q.OrderBy != nil && q.OrderBy.Desc {
			return ci > 0
		}
		return ci < 0
	})

	out = q.window(out)

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if q.LimitToLast > 0 && len(out) > q.LimitToLast {
		out = out[len(out)-q.LimitToLast:]
	}
	return out
}

func (q QuerySpec) matches(s DocSnapshot) bool {
	for _, w := range q.Wheres {
		if !matchWhere(s.Fields[w.Field], w) {
			return false
		}
	}
	return true
}

func (q QuerySpec) sortValue(s DocSnapshot) any {
	if q.OrderBy == nil {
		return s.ID
	}
	return s.Fields[q.OrderBy.Field]
}

// window trims the ordered result set to the cursor bounds.
func (q QuerySpec) window(snaps []DocSnapshot) []DocSnapshot {
	desc := q.OrderBy != nil && q.OrderBy.Desc
	cmp := func(s DocSnapshot, bound any) int {
		c := compareValues(q.sortValue(s), bound)
		if desc {
			return -c
		}
		return c
	}

	start := 0
	if q.StartAt != nil {
		for start < len(snaps) && cmp(snaps[start], q.StartAt) < 0 {
			start++
		}
	}
	if q.StartAfter != nil {
		for start < len(snaps) && cmp(snaps[start], q.StartAfter) <= 0 {
			start++
		}
	}

	end := len(snaps)
	if q.EndAt != nil {
		for end > start && cmp(snaps[end-1], q.EndAt) > 0 {
			end--
		}
	}
	if q.EndBefore != nil {
		for end > start && cmp(snaps[end-1], q.EndBefore) >= 0 {
			end--
		}
	}
	return snaps[start:end]
}

func matchWhere(fieldValue any, w Where) bool {
	switch w.Op {
	case OpEqual:
		return DeepEqual(fieldValue, w.Value)
	case OpNotEqual:
		return !DeepEqual(fieldValue, w.Value)
	case OpLess:
		return compareValues(fieldValue, w.Value) < 0
	case OpLessEqual:
		return compareValues(fieldValue, w.Value) <= 0
	case OpGreater:
		return compareValues(fieldValue, w.Value) > 0
	case OpGreaterEqual:
		return compareValues(fieldValue, w.Value) >= 0
	case OpIn:
		candidates, ok := w.Value.([]any)
		if !ok {
			return false
		}
		for _, c := range candidates {
			if DeepEqual(fieldValue, c) {
				return true
			}
		}
		return false
	case OpArrayContains:
		arr, ok := fieldValue.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if DeepEqual(e, w.Value) {
				return true
			}
		}
		return false
	}
	return false
}

// compareValues imposes a total order across the value kinds the store
// accepts: nil < bool < number < time < string. Within a kind the
// natural order applies.
func compareValues(a, b any) int {
	ra, rb := rankValue(a), rankValue(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case 3:
		am, _ := asMillis(a)
		bm, _ := asMillis(b)
		switch {
		case am < bm:
			return -1
		case am > bm:
			return 1
		default:
			return 0
		}
	case 4:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func rankValue(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := asFloat(v); ok {
		return 2
	}
	if _, ok := asMillis(v); ok {
		return 3
	}
	if _, ok := v.(string); ok {
		return 4
	}
	return 5
}
