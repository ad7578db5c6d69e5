package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return mock, New(mock).WithClock(func() time.Time { return now })
}

func TestCollection_Find(t *testing.T) {
	mock, store := newMockStore(t)

	stmt := "SELECT data FROM documents WHERE collection = $1 AND " +
		"(jsonb_typeof(data #> $2::text[]) = jsonb_typeof($3::jsonb) AND data #> $2::text[] >= $3::jsonb) " +
		"ORDER BY data #> $4::text[] DESC NULLS LAST, data #> $5::text[] ASC NULLS FIRST LIMIT $6"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WithArgs("tours", []string{"price"}, "500", []string{"price"}, []string{"_id"}, 2).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"_id":"t5","price":1000,"__v":0}`)).
			AddRow([]byte(`{"_id":"t4","price":800,"__v":0}`)))

	docs, err := store.Collection("tours").Find(context.Background(), docstore.Query{
		Filter:     docstore.Filter{{Field: "price", Op: docstore.OpGte, Value: float64(500)}},
		Sort:       []docstore.SortKey{{Field: "price", Desc: true}, {Field: "_id"}},
		Projection: docstore.Projection{Exclude: []string{docstore.VersionField}},
		Limit:      2,
	})

	require.NoError(t, err)
	assert.Equal(t, []docstore.Document{
		{"_id": "t5", "price": float64(1000)},
		{"_id": "t4", "price": float64(800)},
	}, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_FindBindsFieldNamesAsParameters(t *testing.T) {
	mock, store := newMockStore(t)

	stmt := "SELECT data FROM documents WHERE collection = $1 AND data #> $2::text[] = $3::jsonb " +
		"AND data #> $4::text[] IS DISTINCT FROM $5::jsonb OFFSET $6"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WithArgs("tours", []string{"name'); DROP TABLE documents; --"}, `"$where:1"`, []string{"secretTour"}, "true", 10).
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	docs, err := store.Collection("tours").Find(context.Background(), docstore.Query{
		Filter: docstore.Filter{
			docstore.Eq("name'); DROP TABLE documents; --", "$where:1"),
			docstore.Ne("secretTour", true),
		},
		Skip: 10,
	})

	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_FindIn(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("data #> $2::text[] IN (SELECT jsonb_array_elements($3::jsonb))")).
		WithArgs("users", []string{"_id"}, `["u1","u2"]`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"_id":"u1"}`)))

	docs, err := store.Collection("users").Find(context.Background(), docstore.Query{
		Filter: docstore.Filter{docstore.In("_id", "u1", "u2")},
	})

	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Count(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE collection = $1")).
		WithArgs("tours").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.Collection("tours").Count(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_FindByID_NotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT data FROM documents WHERE collection").
		WithArgs("tours", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Collection("tours").FindByID(context.Background(), "missing")

	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Insert(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("reviews", "r1", `{"__v":0,"_id":"r1","createdAt":"2024-01-02T03:04:05.000Z","rating":4}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	doc, err := store.Collection("reviews").Insert(context.Background(), docstore.Document{"_id": "r1", "rating": float64(4)})

	require.NoError(t, err)
	assert.Equal(t, "r1", doc.ID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_InsertUniqueViolation(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("reviews", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_reviews_tour_user_key"})

	_, err := store.Collection("reviews").Insert(context.Background(), docstore.Document{"tour": "t1", "user": "u1"})

	assert.ErrorIs(t, err, docstore.ErrDuplicate)
	assert.Contains(t, err.Error(), "documents_reviews_tour_user_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_UpdateByID(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("UPDATE documents").
		WithArgs("tours", "t1", `{"ratingAverage":4.7,"ratingQuantity":3}`).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"_id":"t1","ratingAverage":4.7,"ratingQuantity":3,"__v":2}`)))

	doc, err := store.Collection("tours").UpdateByID(context.Background(), "t1", docstore.Document{
		"_id":            "ignored",
		"ratingAverage":  4.7,
		"ratingQuantity": float64(3),
	})

	require.NoError(t, err)
	assert.Equal(t, float64(2), doc[docstore.VersionField])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_DeleteByID(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("DELETE FROM documents").
		WithArgs("reviews", "r1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"_id":"r1","tour":"t1"}`)))
	mock.ExpectQuery("DELETE FROM documents").
		WithArgs("reviews", "r1").
		WillReturnError(pgx.ErrNoRows)

	doc, err := store.Collection("reviews").DeleteByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "t1", doc["tour"])

	_, err = store.Collection("reviews").DeleteByID(context.Background(), "r1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Aggregate(t *testing.T) {
	mock, store := newMockStore(t)

	stmt := "SELECT COALESCE(data #>> $4::text[], ''), COUNT(*)::float8, " +
		"COALESCE(AVG(CASE WHEN jsonb_typeof(data #> $5::text[]) = 'number' THEN (data #>> $5::text[])::numeric END), 0)::float8 " +
		"FROM documents WHERE collection = $1 AND data #> $2::text[] = $3::jsonb GROUP BY 1 ORDER BY 1"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WithArgs("reviews", []string{"tour"}, `"t1"`, []string{"tour"}, []string{"rating"}).
		WillReturnRows(pgxmock.NewRows([]string{"key", "n", "avg"}).AddRow("t1", float64(2), float64(4)))

	got, err := store.Collection("reviews").Aggregate(context.Background(), docstore.Group{
		Match: docstore.Filter{docstore.Eq("tour", "t1")},
		By:    "tour",
		Accumulators: []docstore.Accumulator{
			{Name: "n", Kind: docstore.AccCount},
			{Name: "avg", Kind: docstore.AccAvg, Field: "rating"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []docstore.GroupResult{{Key: "t1", Values: map[string]float64{"n": 2, "avg": 4}}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_RejectsUnknownOperatorWithoutQuerying(t *testing.T) {
	mock, store := newMockStore(t)

	_, err := store.Collection("tours").Find(context.Background(), docstore.Query{
		Filter: docstore.Filter{{Field: "x", Op: "$where", Value: "1"}},
	})

	assert.ErrorIs(t, err, docstore.ErrInvalidQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
