// Package repository maps store operations on one collection to application
// errors. Writes go through the collection's pipeline so validators and
// post-write hooks always run.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
)

// Repository is the data access for one resource.
type Repository struct {
	resource string
	pipe     *docstore.Pipeline
	conflict string
}

// New creates a repository for resource (used in error messages) over pipe.
func New(resource string, pipe *docstore.Pipeline) *Repository {
	return &Repository{
		resource: resource,
		pipe:     pipe,
		conflict: fmt.Sprintf("a %s with these values already exists", resource),
	}
}

// WithConflictMessage sets the message of duplicate-key errors.
func (r *Repository) WithConflictMessage(msg string) *Repository {
	r.conflict = msg
	return r
}

// Resource returns the resource name.
func (r *Repository) Resource() string { return r.resource }

// Collection returns the underlying collection.
func (r *Repository) Collection() docstore.Collection { return r.pipe.Collection() }

// Find starts a read restricted by f.
func (r *Repository) Find(f docstore.Filter) *docstore.Finder {
	return docstore.Find(r.pipe.Collection(), f)
}

// Get returns the document with id, or a NotFound error.
func (r *Repository) Get(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := r.pipe.Collection().FindByID(ctx, id)
	if err != nil {
		return nil, r.mapError(err, id)
	}
	return doc, nil
}

// FindOne returns the first document matching f, ordered by identifier.
// ok is false when nothing matches.
func (r *Repository) FindOne(ctx context.Context, f docstore.Filter) (doc docstore.Document, ok bool, err error) {
	docs, err := r.Find(f).Sort(docstore.SortKey{Field: docstore.IDField}).Limit(1).All(ctx)
	if err != nil {
		return nil, false, r.mapError(err, "")
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

// List runs f as built.
func (r *Repository) List(ctx context.Context, f *docstore.Finder) ([]docstore.Document, error) {
	docs, err := f.All(ctx)
	if err != nil {
		return nil, r.mapError(err, "")
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	return docs, nil
}

// Create validates and stores doc.
func (r *Repository) Create(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	created, err := r.pipe.Insert(ctx, doc)
	if err != nil {
		return nil, r.mapError(err, "")
	}
	return created, nil
}

// Update merges patch into the document with id.
func (r *Repository) Update(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	updated, err := r.pipe.Update(ctx, id, patch)
	if err != nil {
		return nil, r.mapError(err, id)
	}
	return updated, nil
}

// Delete removes the document with id and returns it.
func (r *Repository) Delete(ctx context.Context, id string) (docstore.Document, error) {
	deleted, err := r.pipe.Delete(ctx, id)
	if err != nil {
		return nil, r.mapError(err, id)
	}
	return deleted, nil
}

// Aggregate runs a grouped aggregation over the collection.
func (r *Repository) Aggregate(ctx context.Context, g docstore.Group) ([]docstore.GroupResult, error) {
	res, err := r.pipe.Collection().Aggregate(ctx, g)
	if err != nil {
		return nil, r.mapError(err, "")
	}
	return res, nil
}

func (r *Repository) mapError(err error, id string) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return apperrors.NotFound(r.resource, id)
	case errors.Is(err, docstore.ErrDuplicate):
		return apperrors.Conflict(r.conflict)
	case errors.Is(err, docstore.ErrInvalidQuery):
		return apperrors.InvalidInput(err.Error())
	default:
		return err
	}
}
