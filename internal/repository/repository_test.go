package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/docstore/memory"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.EnsureIndex("users", memory.Index{Name: "users_email_key", Fields: []string{"email"}, Unique: true}))
	pipe := docstore.NewPipeline(store.Collection("users"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New("user", pipe).WithConflictMessage("email already in use")
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	created, err := r.Create(ctx, docstore.Document{"email": "a@b.c", "name": "A"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID())

	got, err := r.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, "A", got.String("name"))

	updated, err := r.Update(ctx, created.ID(), docstore.Document{"name": "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.String("name"))

	doc, ok, err := r.FindOne(ctx, docstore.Filter{docstore.Eq("email", "a@b.c")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID(), doc.ID())

	_, err = r.Delete(ctx, created.ID())
	require.NoError(t, err)

	_, ok, err = r.FindOne(ctx, docstore.Filter{docstore.Eq("email", "a@b.c")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_MapsStoreErrors(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	_, err := r.Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
	assert.Contains(t, err.Error(), "no user found with id missing")

	_, err = r.Update(ctx, "missing", docstore.Document{"name": "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.Delete(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.Create(ctx, docstore.Document{"email": "a@b.c"})
	require.NoError(t, err)
	_, err = r.Create(ctx, docstore.Document{"email": "a@b.c"})
	require.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "email already in use", appErr.Message)

	_, err = r.List(ctx, r.Find(docstore.Filter{{Field: "email", Op: "$where", Value: "1"}}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRepository_ListNeverNil(t *testing.T) {
	r := newRepo(t)
	docs, err := r.List(context.Background(), r.Find(nil))
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestRepository_Aggregate(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	for _, e := range []string{"a@b.c", "b@b.c", "c@b.c"} {
		_, err := r.Create(ctx, docstore.Document{"email": e, "age": 30.0})
		require.NoError(t, err)
	}

	res, err := r.Aggregate(ctx, docstore.Group{
		Accumulators: []docstore.Accumulator{
			{Name: "n", Kind: docstore.AccCount},
			{Name: "age", Kind: docstore.AccAvg, Field: "age"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 3.0, res[0].Values["n"])
	assert.Equal(t, 30.0, res[0].Values["age"])
}
