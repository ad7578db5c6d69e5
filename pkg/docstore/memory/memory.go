// Package memory is an in-process docstore backend.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
)

// Index is a compound index over top-level or dotted fields. Documents missing
// any indexed field are not indexed.
type Index struct {
	Name   string
	Fields []string
	Unique bool
}

// Store holds collections in memory. It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
	now         func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection), now: time.Now}
}

// WithClock replaces the clock used for createdAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) docstore.Collection {
	return s.collection(name)
}

func (s *Store) collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{name: name, docs: make(map[string]docstore.Document), store: s}
		s.collections[name] = c
	}
	return c
}

// EnsureIndex declares an index on a collection. Existing documents must
// already satisfy a unique index.
func (s *Store) EnsureIndex(collection string, idx Index) error {
	c := s.collection(collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx.Unique {
		seen := make(map[string]string)
		for id, d := range c.docs {
			key, ok := indexKey(d, idx)
			if !ok {
				continue
			}
			if other, dup := seen[key]; dup {
				return fmt.Errorf("ensure index %s: documents %s and %s: %w", idx.Name, other, id, docstore.ErrDuplicate)
			}
			seen[key] = id
		}
	}
	c.indexes = append(c.indexes, idx)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Collection is an in-memory docstore.Collection.
type Collection struct {
	name    string
	store   *Store
	mu      sync.RWMutex
	docs    map[string]docstore.Document
	order   []string
	indexes []Index
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) snapshot() []docstore.Document {
	out := make([]docstore.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id])
	}
	return out
}

func (c *Collection) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return docstore.Evaluate(c.snapshot(), q), nil
}

func (c *Collection) Count(ctx context.Context, f docstore.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, d := range c.docs {
		if docstore.Match(d, f) {
			n++
		}
	}
	return n, nil
}

func (c *Collection) FindByID(ctx context.Context, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return d.Clone(), nil
}

func (c *Collection) Insert(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := docstore.PrepareInsert(doc, c.store.now())
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[d.ID()]; exists {
		return nil, fmt.Errorf("insert %s: %w", d.ID(), docstore.ErrDuplicate)
	}
	if err := c.checkUnique(d, ""); err != nil {
		return nil, err
	}
	c.docs[d.ID()] = d
	c.order = append(c.order, d.ID())
	return d.Clone(), nil
}

func (c *Collection) UpdateByID(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	before, ok := c.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	after := docstore.ApplyPatch(before, patch)
	if err := c.checkUnique(after, id); err != nil {
		return nil, err
	}
	c.docs[id] = after
	return after.Clone(), nil
}

func (c *Collection) DeleteByID(ctx context.Context, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return d, nil
}

func (c *Collection) Aggregate(ctx context.Context, g docstore.Group) ([]docstore.GroupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return docstore.EvaluateGroup(c.snapshot(), g)
}

// checkUnique must be called with c.mu held. self is the id of the document
// being replaced, if any.
func (c *Collection) checkUnique(d docstore.Document, self string) error {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		key, ok := indexKey(d, idx)
		if !ok {
			continue
		}
		for id, other := range c.docs {
			if id == self {
				continue
			}
			if otherKey, ok := indexKey(other, idx); ok && otherKey == key {
				return fmt.Errorf("index %s: %w", idx.Name, docstore.ErrDuplicate)
			}
		}
	}
	return nil
}

func indexKey(d docstore.Document, idx Index) (string, bool) {
	parts := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		v, ok := docstore.Lookup(d, f)
		if !ok || v == nil {
			return "", false
		}
		parts[i] = docstore.KeyString(v)
	}
	return strings.Join(parts, "\x00"), true
}
