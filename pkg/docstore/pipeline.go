package docstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hookFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docstore_hook_failures_total",
	Help: "Post-write hooks that returned an error.",
}, []string{"collection", "op"})

// WriteOp is the kind of write that produced a WriteEvent.
type WriteOp string

const (
	OpInsert WriteOp = "insert"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
)

// WriteEvent describes a committed write. Before is nil for inserts and After
// is nil for deletes.
type WriteEvent struct {
	Op         WriteOp
	Collection string
	Before     Document
	After      Document
}

// Validator inspects the document about to be stored (for updates, the merged
// result) and rejects it by returning an error.
type Validator func(ctx context.Context, doc Document) error

// Hook observes a committed write.
type Hook func(ctx context.Context, ev WriteEvent) error

// Pipeline is the write path of a collection: validate, persist, then run the
// registered hooks in order. Hook errors are logged and counted but never
// returned, since the write they observe has already been committed.
type Pipeline struct {
	coll       Collection
	validators []Validator
	hooks      []Hook
	logger     *slog.Logger
}

// NewPipeline wraps coll.
func NewPipeline(coll Collection, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{coll: coll, logger: logger}
}

// Validate registers validators.
func (p *Pipeline) Validate(v ...Validator) *Pipeline {
	p.validators = append(p.validators, v...)
	return p
}

// OnWrite registers post-write hooks.
func (p *Pipeline) OnWrite(h ...Hook) *Pipeline {
	p.hooks = append(p.hooks, h...)
	return p
}

// Collection returns the wrapped collection for reads.
func (p *Pipeline) Collection() Collection { return p.coll }

// Insert validates and stores doc.
func (p *Pipeline) Insert(ctx context.Context, doc Document) (Document, error) {
	if err := p.validate(ctx, doc); err != nil {
		return nil, err
	}
	created, err := p.coll.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	p.fire(ctx, WriteEvent{Op: OpInsert, Collection: p.coll.Name(), After: created})
	return created, nil
}

// Update merges patch into the document with the given id. Validators see the
// merged document.
func (p *Pipeline) Update(ctx context.Context, id string, patch Document) (Document, error) {
	before, err := p.coll.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.validate(ctx, ApplyPatch(before, patch)); err != nil {
		return nil, err
	}
	after, err := p.coll.UpdateByID(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	p.fire(ctx, WriteEvent{Op: OpUpdate, Collection: p.coll.Name(), Before: before, After: after})
	return after, nil
}

// Delete removes the document with the given id.
func (p *Pipeline) Delete(ctx context.Context, id string) (Document, error) {
	deleted, err := p.coll.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.fire(ctx, WriteEvent{Op: OpDelete, Collection: p.coll.Name(), Before: deleted})
	return deleted, nil
}

func (p *Pipeline) validate(ctx context.Context, doc Document) error {
	for _, v := range p.validators {
		if err := v(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) fire(ctx context.Context, ev WriteEvent) {
	// The write is committed; a caller giving up must not stop the hooks.
	ctx = context.WithoutCancel(ctx)
	for i, h := range p.hooks {
		if err := p.runHook(ctx, h, ev); err != nil {
			hookFailures.WithLabelValues(ev.Collection, string(ev.Op)).Inc()
			p.logger.ErrorContext(ctx, "post-write hook failed",
				slog.String("collection", ev.Collection),
				slog.String("op", string(ev.Op)),
				slog.Int("hook", i),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pipeline) runHook(ctx context.Context, h Hook, ev WriteEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
