package docstore

import (
	"sort"
	"time"
)

// matches reports whether a document satisfies every filter.
func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		fv, ok := doc.Data[f.Field]
		if !ok {
			return false
		}
		if !applyOp(fv, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func applyOp(fieldValue interface{}, op Op, filterValue interface{}) bool {
	switch op {
	case OpEqual:
		cmp, ok := compareValues(fieldValue, filterValue)
		return ok && cmp == 0
	case OpGreater:
		cmp, ok := compareValues(fieldValue, filterValue)
		return ok && cmp >= 0
	case OpLess:
		cmp, ok := compareValues(fieldValue, filterValue)
		return ok && cmp < 0
	case OpIn:
		values, ok := filterValue.([]interface{})
		if !ok {
			return false
		}
		for _, v := range values {
			if cmp, ok := compareValues(fieldValue, v); ok && cmp == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// compareValues orders two values of like kind. Times compare as times
// whether they arrive as time.Time or their canonical string encoding.
func compareValues(a, b interface{}) (int, bool) {
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	default:
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		t, err := DecodeTime(val)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// sortDocs orders documents in place by the given field.
func sortDocs(docs []Document, orderBy *Order) {
	if orderBy == nil {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		cmp, ok := compareValues(docs[i].Data[orderBy.Field], docs[j].Data[orderBy.Field])
		if !ok {
			return false
		}
		if orderBy.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
