// Package store opens the document store the application runs on.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/migrations"
	"github.com/MinhajJamraiz/natours/pkg/database"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/docstore/memory"
	"github.com/MinhajJamraiz/natours/pkg/docstore/postgres"
)

// Drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config selects and configures the backend.
type Config struct {
	Driver   string
	Postgres database.PostgresConfig
	Retry    database.Retry
	Service  string
}

// Handle is an open store. Close releases the connection pool, if any.
type Handle struct {
	docstore.Store
	pool *pgxpool.Pool
}

// Pool returns the PostgreSQL pool, or nil for the memory driver.
func (h *Handle) Pool() *pgxpool.Pool { return h.pool }

// Close releases backend resources.
func (h *Handle) Close() {
	if h.pool != nil {
		h.pool.Close()
	}
}

// Open connects to the configured backend and prepares its indexes. For
// PostgreSQL this applies pending migrations and registers pool metrics on
// reg when it is not nil.
func Open(ctx context.Context, cfg Config, reg prometheus.Registerer, l *slog.Logger) (*Handle, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		s, err := NewMemory()
		if err != nil {
			return nil, err
		}
		l.Info("using in-memory document store")
		return &Handle{Store: s}, nil

	case DriverPostgres:
		pool, err := database.OpenPostgres(ctx, &cfg.Postgres, cfg.Retry, l)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, cfg.Retry, l); err != nil {
			pool.Close()
			return nil, err
		}
		if reg != nil {
			if err := database.RegisterPoolMetrics(reg, pool, cfg.Service); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &Handle{Store: postgres.New(pool), pool: pool}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory store carrying every application index.
func NewMemory() (*memory.Store, error) {
	s := memory.New()
	for _, idx := range domain.Indexes() {
		if err := s.EnsureIndex(idx.Collection, memory.Index{Name: idx.Name, Fields: idx.Fields, Unique: idx.Unique}); err != nil {
			return nil, fmt.Errorf("ensure index %s: %w", idx.Name, err)
		}
	}
	return s, nil
}
