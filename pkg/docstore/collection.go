package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document has the requested identifier.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("docstore: duplicate key")
	// ErrInvalidQuery is returned for malformed conditions.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Projection selects the fields of each result. Include wins over Exclude;
// the identifier is always returned.
type Projection struct {
	Include []string
	Exclude []string
}

// Query is a fully described read.
type Query struct {
	Filter     Filter
	Sort       []SortKey
	Projection Projection
	Skip       int
	// Limit of zero means no limit.
	Limit int
}

// AccumulatorKind names a group aggregate function.
type AccumulatorKind string

const (
	AccCount AccumulatorKind = "count"
	AccSum   AccumulatorKind = "sum"
	AccAvg   AccumulatorKind = "avg"
	AccMin   AccumulatorKind = "min"
	AccMax   AccumulatorKind = "max"
)

// Accumulator computes one named value per group. Field is ignored for
// AccCount; the other kinds skip documents whose field is not numeric.
type Accumulator struct {
	Name  string
	Kind  AccumulatorKind
	Field string
}

// Group describes a match-then-group aggregation.
type Group struct {
	Match Filter
	// By is the grouping field. Empty groups every matching document together.
	By           string
	Accumulators []Accumulator
}

// GroupResult is one group of an aggregation. Key is the text form of the
// grouping value (see KeyString). Groups are returned ordered by Key.
type GroupResult struct {
	Key    string
	Values map[string]float64
}

// Collection is a named set of documents.
type Collection interface {
	Name() string
	// Find returns the documents matching q in order.
	Find(ctx context.Context, q Query) ([]Document, error)
	Count(ctx context.Context, f Filter) (int, error)
	FindByID(ctx context.Context, id string) (Document, error)
	// Insert stores doc, assigning _id, createdAt and __v where missing, and
	// returns the stored document.
	Insert(ctx context.Context, doc Document) (Document, error)
	// UpdateByID merges patch into the stored document and returns the result.
	UpdateByID(ctx context.Context, id string, patch Document) (Document, error)
	// DeleteByID removes the document and returns it as it was.
	DeleteByID(ctx context.Context, id string) (Document, error)
	Aggregate(ctx context.Context, g Group) ([]GroupResult, error)
}

// Store hands out collections by name.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
}
