// Package postgres stores docstore collections in a single PostgreSQL table
// of JSONB documents keyed by (collection, id).
//
// Filters, ordering and pagination are pushed down to SQL. Field paths are
// always bound as text[] parameters and values as jsonb parameters, so no
// client-supplied text is ever spliced into a statement. Unique indexes are
// expression indexes created by migrations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MinhajJamraiz/natours/pkg/database"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
)

const uniqueViolation = "23505"

// Store is a docstore.Store backed by the documents table.
type Store struct {
	db  database.DBTX
	now func() time.Time
}

// New creates a store over db.
func New(db database.DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the clock used for createdAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Collection returns a handle to the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &Collection{name: name, store: s}
}

// Ping runs a trivial statement.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping documents store: %w", err)
	}
	return nil
}

// Collection is one collection of the documents table.
type Collection struct {
	name  string
	store *Store
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Find(ctx context.Context, q docstore.Query) (docs []docstore.Document, err error) {
	b := &sqlBuilder{}
	where, err := b.where(c.name, q.Filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT data FROM documents WHERE ")
	sb.WriteString(where)
	if len(q.Sort) > 0 {
		keys := make([]string, len(q.Sort))
		for i, k := range q.Sort {
			if k.Desc {
				keys[i] = "data #> " + b.path(k.Field) + " DESC NULLS LAST"
			} else {
				keys[i] = "data #> " + b.path(k.Field) + " ASC NULLS FIRST"
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + b.arg(q.Skip))
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(q.Limit))
	}
	stmt := sb.String()

	ctx, end := database.TraceQuery(ctx, "docstore.Find", stmt)
	defer func() { end(err) }()

	rows, err := c.store.db.Query(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	defer rows.Close()

	docs = []docstore.Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Project(doc, q.Projection))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *Collection) Count(ctx context.Context, f docstore.Filter) (n int, err error) {
	b := &sqlBuilder{}
	where, err := b.where(c.name, f)
	if err != nil {
		return 0, err
	}
	stmt := "SELECT COUNT(*) FROM documents WHERE " + where

	ctx, end := database.TraceQuery(ctx, "docstore.Count", stmt)
	defer func() { end(err) }()

	if err := c.store.db.QueryRow(ctx, stmt, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

const findByIDStmt = `SELECT data FROM documents WHERE collection = $1 AND id = $2`

func (c *Collection) FindByID(ctx context.Context, id string) (doc docstore.Document, err error) {
	ctx, end := database.TraceQuery(ctx, "docstore.FindByID", findByIDStmt)
	defer func() { end(err) }()

	var raw []byte
	if err := c.store.db.QueryRow(ctx, findByIDStmt, c.name, id).Scan(&raw); err != nil {
		return nil, c.mapError("find by id", err)
	}
	return decode(raw)
}

const insertStmt = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`

func (c *Collection) Insert(ctx context.Context, in docstore.Document) (doc docstore.Document, err error) {
	doc = docstore.PrepareInsert(in, c.store.now())
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", c.name, err)
	}

	ctx, end := database.TraceQuery(ctx, "docstore.Insert", insertStmt)
	defer func() { end(err) }()

	if _, err := c.store.db.Exec(ctx, insertStmt, c.name, doc.ID(), string(raw)); err != nil {
		return nil, c.mapError("insert", err)
	}
	return doc, nil
}

const updateStmt = `UPDATE documents
SET data = data || $3::jsonb || jsonb_build_object('__v', COALESCE((data->>'__v')::numeric, 0) + 1),
    updated_at = NOW()
WHERE collection = $1 AND id = $2
RETURNING data`

func (c *Collection) UpdateByID(ctx context.Context, id string, patch docstore.Document) (doc docstore.Document, err error) {
	raw, err := json.Marshal(docstore.CleanPatch(patch))
	if err != nil {
		return nil, fmt.Errorf("encode %s patch: %w", c.name, err)
	}

	ctx, end := database.TraceQuery(ctx, "docstore.UpdateByID", updateStmt)
	defer func() { end(err) }()

	var out []byte
	if err := c.store.db.QueryRow(ctx, updateStmt, c.name, id, string(raw)).Scan(&out); err != nil {
		return nil, c.mapError("update", err)
	}
	return decode(out)
}

const deleteStmt = `DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING data`

func (c *Collection) DeleteByID(ctx context.Context, id string) (doc docstore.Document, err error) {
	ctx, end := database.TraceQuery(ctx, "docstore.DeleteByID", deleteStmt)
	defer func() { end(err) }()

	var raw []byte
	if err := c.store.db.QueryRow(ctx, deleteStmt, c.name, id).Scan(&raw); err != nil {
		return nil, c.mapError("delete", err)
	}
	return decode(raw)
}

func (c *Collection) Aggregate(ctx context.Context, g docstore.Group) (results []docstore.GroupResult, err error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	b := &sqlBuilder{}
	where, err := b.where(c.name, g.Match)
	if err != nil {
		return nil, err
	}

	cols := []string{"''"}
	if g.By != "" {
		cols[0] = "COALESCE(data #>> " + b.path(g.By) + ", '')"
	}
	for _, acc := range g.Accumulators {
		cols = append(cols, b.accumulator(acc))
	}
	stmt := "SELECT " + strings.Join(cols, ", ") +
		" FROM documents WHERE " + where +
		" GROUP BY 1 ORDER BY 1"

	ctx, end := database.TraceQuery(ctx, "docstore.Aggregate", stmt)
	defer func() { end(err) }()

	rows, err := c.store.db.Query(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", c.name, err)
	}
	defer rows.Close()

	results = []docstore.GroupResult{}
	for rows.Next() {
		var key string
		values := make([]float64, len(g.Accumulators))
		dest := make([]any, 0, len(values)+1)
		dest = append(dest, &key)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s group: %w", c.name, err)
		}
		res := docstore.GroupResult{Key: key, Values: make(map[string]float64, len(values))}
		for i, acc := range g.Accumulators {
			res.Values[acc.Name] = values[i]
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s groups: %w", c.name, err)
	}
	return results, nil
}

func (c *Collection) mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s: %s: %w", op, c.name, pgErr.ConstraintName, docstore.ErrDuplicate)
	}
	return fmt.Errorf("%s %s: %w", op, c.name, err)
}

func decode(raw []byte) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
