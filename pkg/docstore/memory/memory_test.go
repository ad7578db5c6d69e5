package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
)

func TestCollection_InsertAssignsReservedFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := New().WithClock(func() time.Time { return now }).Collection("tours")

	doc, err := c.Insert(context.Background(), docstore.Document{"name": "The Sea Explorer"})

	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID())
	assert.Equal(t, "2024-03-01T10:00:00.000Z", doc[docstore.CreatedAtField])
	assert.Equal(t, float64(0), doc[docstore.VersionField])
}

func TestCollection_InsertDuplicateID(t *testing.T) {
	c := New().Collection("tours")
	ctx := context.Background()

	_, err := c.Insert(ctx, docstore.Document{"_id": "a"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, docstore.Document{"_id": "a"})

	assert.ErrorIs(t, err, docstore.ErrDuplicate)
}

func TestCollection_UniqueIndex(t *testing.T) {
	s := New()
	require.NoError(t, s.EnsureIndex("reviews", Index{Name: "tour_user", Fields: []string{"tour", "user"}, Unique: true}))
	c := s.Collection("reviews")
	ctx := context.Background()

	first, err := c.Insert(ctx, docstore.Document{"tour": "t1", "user": "u1"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, docstore.Document{"tour": "t1", "user": "u1"})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)

	other, err := c.Insert(ctx, docstore.Document{"tour": "t2", "user": "u1"})
	require.NoError(t, err)

	_, err = c.UpdateByID(ctx, other.ID(), docstore.Document{"tour": "t1"})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)

	_, err = c.UpdateByID(ctx, first.ID(), docstore.Document{"tour": "t1", "rating": float64(3)})
	assert.NoError(t, err, "a document never conflicts with itself")

	_, err = c.Insert(ctx, docstore.Document{"tour": "t1"})
	assert.NoError(t, err, "documents missing an indexed field are not indexed")
}

func TestStore_EnsureIndexRejectsExistingDuplicates(t *testing.T) {
	s := New()
	c := s.Collection("users")
	ctx := context.Background()
	_, _ = c.Insert(ctx, docstore.Document{"email": "a@x.io"})
	_, _ = c.Insert(ctx, docstore.Document{"email": "a@x.io"})

	err := s.EnsureIndex("users", Index{Name: "email", Fields: []string{"email"}, Unique: true})

	assert.ErrorIs(t, err, docstore.ErrDuplicate)
}

func TestCollection_FindUpdateDelete(t *testing.T) {
	c := New().Collection("tours")
	ctx := context.Background()
	for i, price := range []float64{100, 400, 600, 800, 1000} {
		_, err := c.Insert(ctx, docstore.Document{"_id": fmt.Sprintf("t%d", i), "price": price, "name": fmt.Sprintf("tour %d", i)})
		require.NoError(t, err)
	}

	docs, err := c.Find(ctx, docstore.Query{
		Filter:     docstore.Filter{{Field: "price", Op: docstore.OpGte, Value: float64(400)}},
		Sort:       []docstore.SortKey{{Field: "price", Desc: true}},
		Projection: docstore.Projection{Include: []string{"price"}},
		Skip:       1,
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []docstore.Document{{"_id": "t3", "price": float64(800)}, {"_id": "t2", "price": float64(600)}}, docs)

	docs[0]["price"] = float64(1)
	again, err := c.FindByID(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, float64(800), again["price"], "results are copies")

	updated, err := c.UpdateByID(ctx, "t3", docstore.Document{"price": float64(850)})
	require.NoError(t, err)
	assert.Equal(t, float64(850), updated["price"])
	assert.Equal(t, float64(1), updated[docstore.VersionField])

	deleted, err := c.DeleteByID(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, float64(850), deleted["price"])

	_, err = c.FindByID(ctx, "t3")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = c.UpdateByID(ctx, "t3", docstore.Document{})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCollection_FindRejectsUnknownOperator(t *testing.T) {
	c := New().Collection("tours")

	_, err := c.Find(context.Background(), docstore.Query{Filter: docstore.Filter{{Field: "a", Op: "$where", Value: "1"}}})

	assert.ErrorIs(t, err, docstore.ErrInvalidQuery)
}

func TestCollection_ConcurrentInserts(t *testing.T) {
	c := New().Collection("reviews")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Insert(ctx, docstore.Document{"rating": float64(i % 5)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestCollection_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Collection("tours").Find(ctx, docstore.Query{})

	assert.ErrorIs(t, err, context.Canceled)
}
