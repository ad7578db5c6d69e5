package docstore

import (
	"sort"
	"strings"
)

// Match reports whether doc satisfies every condition of f.
func Match(doc Document, f Filter) bool {
	for _, c := range f {
		if !matchCondition(doc, c) {
			return false
		}
	}
	return true
}

func matchCondition(doc Document, c Condition) bool {
	actual, present := Lookup(doc, c.Field)
	switch c.Op {
	case OpEq:
		return present && valuesEqual(actual, c.Value)
	case OpNe:
		return !present || !valuesEqual(actual, c.Value)
	case OpIn:
		values, _ := c.Value.([]any)
		if !present {
			return false
		}
		for _, v := range values {
			if valuesEqual(actual, v) {
				return true
			}
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		// Ordering comparisons only apply between values of the same JSON type.
		if !present || typeRank(actual) != typeRank(c.Value) {
			return false
		}
		cmp := CompareValues(actual, c.Value)
		switch c.Op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if typeRank(a) != typeRank(b) {
		return false
	}
	return CompareValues(a, b) == 0
}

// typeRank orders JSON types the way PostgreSQL orders jsonb values:
// null < string < number < boolean < array < object. Missing values are
// handled by callers.
func typeRank(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case bool:
		return 3
	case []any:
		return 4
	case map[string]any, Document:
		return 5
	default:
		if _, ok := toFloat(t); ok {
			return 2
		}
		return 1
	}
}

// CompareValues returns -1, 0 or 1 comparing a and b. Values of different
// types compare by type rank.
func CompareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return compareInts(ra, rb)
	}
	switch ra {
	case 0:
		return 0
	case 1:
		return strings.Compare(KeyString(a), KeyString(b))
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 4:
		la, lb := a.([]any), b.([]any)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := CompareValues(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return compareInts(len(la), len(lb))
	default:
		return strings.Compare(KeyString(a), KeyString(b))
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch i := v.(type) {
	case float64:
		return i, true
	case float32:
		return float64(i), true
	case int:
		return float64(i), true
	case int32:
		return float64(i), true
	case int64:
		return float64(i), true
	case uint:
		return float64(i), true
	case uint64:
		return float64(i), true
	}
	return 0, false
}

// SortDocuments orders docs in place by keys, most significant first. Missing
// fields sort before every present value in ascending order.
func SortDocuments(docs []Document, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			c := compareField(docs[i], docs[j], k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b Document, field string) int {
	va, oka := Lookup(a, field)
	vb, okb := Lookup(b, field)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return -1
	case !okb:
		return 1
	}
	return CompareValues(va, vb)
}

// Project applies p to a copy of doc. The identifier is always kept.
// Dotted paths select or drop nested fields; included embedded fields keep
// their nesting.
func Project(doc Document, p Projection) Document {
	if len(p.Include) > 0 {
		out := make(Document, len(p.Include)+1)
		if id, ok := doc[IDField]; ok {
			out[IDField] = id
		}
		for _, f := range p.Include {
			if v, ok := Lookup(doc, f); ok {
				setPath(out, strings.Split(f, "."), cloneValue(v))
			}
		}
		return out
	}
	out := doc.Clone()
	for _, f := range p.Exclude {
		if f == IDField {
			continue
		}
		deletePath(out, strings.Split(f, "."))
	}
	return out
}

func setPath(m map[string]any, parts []string, v any) {
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func deletePath(m map[string]any, parts []string) {
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Document:
		return t, true
	}
	return nil, false
}
