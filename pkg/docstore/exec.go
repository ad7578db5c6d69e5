package docstore

import (
	"fmt"
	"math"
	"sort"
)

// Evaluate runs q over docs without touching the input slice. Backends that
// cannot push a query down use it to execute reads in process.
func Evaluate(docs []Document, q Query) []Document {
	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Match(d, q.Filter) {
			matched = append(matched, d)
		}
	}
	SortDocuments(matched, q.Sort)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Document, len(matched))
	for i, d := range matched {
		out[i] = Project(d, q.Projection)
	}
	return out
}

type groupState struct {
	count  float64
	sums   map[string]float64
	counts map[string]float64
	mins   map[string]float64
	maxs   map[string]float64
}

// EvaluateGroup runs g over docs.
func EvaluateGroup(docs []Document, g Group) ([]GroupResult, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	groups := make(map[string]*groupState)
	for _, d := range docs {
		if !Match(d, g.Match) {
			continue
		}
		key := ""
		if g.By != "" {
			v, _ := Lookup(d, g.By)
			key = KeyString(v)
		}
		st, ok := groups[key]
		if !ok {
			st = &groupState{
				sums:   map[string]float64{},
				counts: map[string]float64{},
				mins:   map[string]float64{},
				maxs:   map[string]float64{},
			}
			groups[key] = st
		}
		st.count++
		for _, acc := range g.Accumulators {
			if acc.Kind == AccCount {
				continue
			}
			f, ok := d.Float(acc.Field)
			if !ok {
				continue
			}
			if st.counts[acc.Name] == 0 {
				st.mins[acc.Name] = f
				st.maxs[acc.Name] = f
			}
			st.sums[acc.Name] += f
			st.counts[acc.Name]++
			st.mins[acc.Name] = math.Min(st.mins[acc.Name], f)
			st.maxs[acc.Name] = math.Max(st.maxs[acc.Name], f)
		}
	}

	results := make([]GroupResult, 0, len(groups))
	for key, st := range groups {
		values := make(map[string]float64, len(g.Accumulators))
		for _, acc := range g.Accumulators {
			switch acc.Kind {
			case AccCount:
				values[acc.Name] = st.count
			case AccSum:
				values[acc.Name] = st.sums[acc.Name]
			case AccAvg:
				if n := st.counts[acc.Name]; n > 0 {
					values[acc.Name] = st.sums[acc.Name] / n
				} else {
					values[acc.Name] = 0
				}
			case AccMin:
				values[acc.Name] = st.mins[acc.Name]
			case AccMax:
				values[acc.Name] = st.maxs[acc.Name]
			}
		}
		results = append(results, GroupResult{Key: key, Values: values})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

// Validate checks the match filter and the accumulators.
func (g Group) Validate() error {
	if err := g.Match.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(g.Accumulators))
	for _, acc := range g.Accumulators {
		if acc.Name == "" || seen[acc.Name] {
			return fmt.Errorf("%w: accumulator name %q empty or repeated", ErrInvalidQuery, acc.Name)
		}
		seen[acc.Name] = true
		switch acc.Kind {
		case AccCount:
		case AccSum, AccAvg, AccMin, AccMax:
			if acc.Field == "" {
				return fmt.Errorf("%w: accumulator %s needs a field", ErrInvalidQuery, acc.Name)
			}
		default:
			return fmt.Errorf("%w: unknown accumulator %q", ErrInvalidQuery, acc.Kind)
		}
	}
	return nil
}
