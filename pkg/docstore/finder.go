package docstore

import "context"

// Finder is an unexecuted query against a collection. Its methods refine the
// query and return the same Finder; All executes it.
type Finder struct {
	coll Collection
	q    Query
}

// Find starts a query over c restricted by f.
func Find(c Collection, f Filter) *Finder {
	return &Finder{coll: c, q: Query{Filter: f.And()}}
}

// Where adds conditions to the filter.
func (f *Finder) Where(conds ...Condition) *Finder {
	f.q.Filter = f.q.Filter.And(conds...)
	return f
}

// Sort replaces the ordering.
func (f *Finder) Sort(keys ...SortKey) *Finder {
	f.q.Sort = append([]SortKey(nil), keys...)
	return f
}

// Select replaces the projection.
func (f *Finder) Select(p Projection) *Finder {
	f.q.Projection = p
	return f
}

// Skip sets the number of leading results to drop.
func (f *Finder) Skip(n int) *Finder {
	if n < 0 {
		n = 0
	}
	f.q.Skip = n
	return f
}

// Limit caps the number of results. Zero removes the cap.
func (f *Finder) Limit(n int) *Finder {
	if n < 0 {
		n = 0
	}
	f.q.Limit = n
	return f
}

// Query returns a copy of the accumulated query.
func (f *Finder) Query() Query {
	q := f.q
	q.Filter = f.q.Filter.And()
	q.Sort = append([]SortKey(nil), f.q.Sort...)
	return q
}

// Collection returns the collection the finder reads from.
func (f *Finder) Collection() Collection { return f.coll }

// All executes the query.
func (f *Finder) All(ctx context.Context) ([]Document, error) {
	return f.coll.Find(ctx, f.Query())
}

// Count returns the number of documents matching the filter, ignoring
// ordering and pagination.
func (f *Finder) Count(ctx context.Context) (int, error) {
	return f.coll.Count(ctx, f.q.Filter)
}
