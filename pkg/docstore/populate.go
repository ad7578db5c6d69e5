package docstore

import (
	"context"
	"fmt"
)

// Relation declares how documents of one collection reference another.
//
// Each document's LocalField (a scalar or a list of scalars) is matched
// against ForeignField in Collection. The matches are attached under Name,
// replacing whatever was there: a single document (or nil) when Many is
// false, a list otherwise.
type Relation struct {
	Name         string
	LocalField   string
	Collection   string
	ForeignField string
	Select       Projection
	Many         bool
}

// Populate expands rels on docs in place. Each relation costs one query
// regardless of the number of documents.
func Populate(ctx context.Context, store Store, docs []Document, rels ...Relation) error {
	for _, rel := range rels {
		if err := populateOne(ctx, store, docs, rel); err != nil {
			return fmt.Errorf("populate %s: %w", rel.Name, err)
		}
	}
	return nil
}

func localKeys(doc Document, field string) []string {
	v, ok := Lookup(doc, field)
	if !ok || v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		keys := make([]string, 0, len(list))
		for _, item := range list {
			if item != nil {
				keys = append(keys, KeyString(item))
			}
		}
		return keys
	}
	return []string{KeyString(v)}
}

func populateOne(ctx context.Context, store Store, docs []Document, rel Relation) error {
	if len(docs) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var values []any
	for _, d := range docs {
		for _, k := range localKeys(d, rel.LocalField) {
			if !seen[k] {
				seen[k] = true
				values = append(values, k)
			}
		}
	}

	byKey := make(map[string][]Document)
	if len(values) > 0 {
		sel := rel.Select
		if len(sel.Include) > 0 {
			sel.Include = append(append([]string(nil), sel.Include...), rel.ForeignField)
		}
		found, err := Find(store.Collection(rel.Collection), Filter{In(rel.ForeignField, values...)}).
			Sort(SortKey{Field: IDField}).
			Select(sel).
			All(ctx)
		if err != nil {
			return err
		}
		for _, f := range found {
			v, _ := Lookup(f, rel.ForeignField)
			k := KeyString(v)
			byKey[k] = append(byKey[k], f)
		}
	}

	for _, d := range docs {
		var matches []any
		for _, k := range localKeys(d, rel.LocalField) {
			for _, m := range byKey[k] {
				matches = append(matches, map[string]any(m.Clone()))
			}
		}
		if rel.Many {
			if matches == nil {
				matches = []any{}
			}
			d[rel.Name] = matches
			continue
		}
		if len(matches) == 0 {
			d[rel.Name] = nil
		} else {
			d[rel.Name] = matches[0]
		}
	}
	return nil
}
