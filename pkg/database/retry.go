package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Retry bounds startup work against a database that may still be coming up.
type Retry struct {
	Attempts int
	BaseWait time.Duration
	// Jitter is the fraction of each wait randomised in both directions.
	Jitter float64
}

// DefaultRetry tries three times, waiting about 1s then 2s.
func DefaultRetry() Retry {
	return Retry{Attempts: 3, BaseWait: time.Second, Jitter: 0.25}
}

func (r Retry) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := r.BaseWait << attempt
	if r.Jitter <= 0 {
		return base
	}
	jitter := time.Duration(float64(base) * r.Jitter * (2*rand.Float64() - 1)) // #nosec G404 -- backoff jitter
	return base + jitter
}

// do runs fn until it succeeds, returns a non-transient error, attempts run
// out or ctx is done.
func (r Retry) do(ctx context.Context, what string, l *slog.Logger, fn func(context.Context) error) error {
	attempts := max(r.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts-1 {
			break
		}

		wait := r.backoff(attempt)
		if l != nil {
			l.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// IsTransient reports whether err is a connectivity problem worth retrying,
// as opposed to a SQL or constraint error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
