package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/internal/lock"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
)

var ratingRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "natours_rating_recomputes_total",
	Help: "Tour rating summary recomputes by outcome.",
}, []string{"outcome"})

// Recompute outcomes.
const (
	outcomeUpdated     = "updated"
	outcomeReset       = "reset"
	outcomeTourMissing = "tour_missing"
	outcomeError       = "error"
)

const (
	accRatingCount = "nRating"
	accRatingAvg   = "avgRating"
)

// RatingSummary is the derived rating of a tour.
type RatingSummary struct {
	Quantity int     `json:"ratingQuantity"`
	Average  float64 `json:"ratingAverage"`
}

// RatingService keeps each tour's rating summary equal to the aggregate of
// its current reviews.
type RatingService struct {
	tours   docstore.Collection
	reviews docstore.Collection
	locker  lock.Locker
	events  event.Publisher
	logger  *slog.Logger
}

// NewRatingService creates a rating service. Summaries are written to tours
// directly, bypassing the tour write pipeline.
func NewRatingService(tours, reviews docstore.Collection, locker lock.Locker, events event.Publisher, logger *slog.Logger) *RatingService {
	if events == nil {
		events = event.Nop{}
	}
	return &RatingService{
		tours:   tours,
		reviews: reviews,
		locker:  locker,
		events:  events,
		logger:  logger,
	}
}

// Compute aggregates the reviews of tourID. A tour without reviews gets the
// reset summary.
func (s *RatingService) Compute(ctx context.Context, tourID string) (RatingSummary, error) {
	groups, err := s.reviews.Aggregate(ctx, docstore.Group{
		Match: docstore.Filter{docstore.Eq(domain.ReviewTour, tourID)},
		By:    domain.ReviewTour,
		Accumulators: []docstore.Accumulator{
			{Name: accRatingCount, Kind: docstore.AccCount},
			{Name: accRatingAvg, Kind: docstore.AccAvg, Field: domain.ReviewRating},
		},
	})
	if err != nil {
		return RatingSummary{}, fmt.Errorf("aggregate reviews of tour %s: %w", tourID, err)
	}

	for _, g := range groups {
		if g.Key != tourID {
			continue
		}
		if n := int(g.Values[accRatingCount]); n > 0 {
			return RatingSummary{Quantity: n, Average: domain.RoundRating(g.Values[accRatingAvg])}, nil
		}
	}
	return RatingSummary{Quantity: domain.DefaultRatingQuantity, Average: domain.DefaultRatingAverage}, nil
}

// Recompute aggregates the reviews of tourID and stores the result on the
// tour. Recomputes of the same tour never interleave. A tour that no longer
// exists is skipped without error.
func (s *RatingService) Recompute(ctx context.Context, tourID string) (RatingSummary, error) {
	unlock, err := s.locker.Lock(ctx, "tour-rating:"+tourID)
	if err != nil {
		ratingRecomputes.WithLabelValues(outcomeError).Inc()
		return RatingSummary{}, fmt.Errorf("lock tour %s: %w", tourID, err)
	}
	defer unlock()

	sum, err := s.Compute(ctx, tourID)
	if err != nil {
		ratingRecomputes.WithLabelValues(outcomeError).Inc()
		return RatingSummary{}, err
	}

	_, err = s.tours.UpdateByID(ctx, tourID, docstore.Document{
		domain.TourRatingQuantity: float64(sum.Quantity),
		domain.TourRatingAverage:  sum.Average,
	})
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		ratingRecomputes.WithLabelValues(outcomeTourMissing).Inc()
		s.logger.WarnContext(ctx, "rating recompute skipped, tour not found",
			slog.String("tour_id", tourID),
		)
		return sum, nil
	case err != nil:
		ratingRecomputes.WithLabelValues(outcomeError).Inc()
		return RatingSummary{}, fmt.Errorf("store rating of tour %s: %w", tourID, err)
	}

	outcome := outcomeUpdated
	if sum.Quantity == 0 {
		outcome = outcomeReset
	}
	ratingRecomputes.WithLabelValues(outcome).Inc()

	s.logger.InfoContext(ctx, "tour rating recomputed",
		slog.String("tour_id", tourID),
		slog.Int("rating_quantity", sum.Quantity),
		slog.Float64("rating_average", sum.Average),
	)

	if err := s.events.RatingUpdated(ctx, event.RatingUpdated{
		TourID:         tourID,
		RatingQuantity: sum.Quantity,
		RatingAverage:  sum.Average,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish rating update",
			slog.String("tour_id", tourID),
			slog.String("error", err.Error()),
		)
	}
	return sum, nil
}

// Hook returns the review post-write hook. It recomputes every tour the
// write touched: the old and the new tour when an update moved a review.
func (s *RatingService) Hook() docstore.Hook {
	return func(ctx context.Context, ev docstore.WriteEvent) error {
		var errs []error
		for _, id := range affectedTours(ev) {
			if _, err := s.Recompute(ctx, id); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

func affectedTours(ev docstore.WriteEvent) []string {
	var ids []string
	for _, d := range []docstore.Document{ev.Before, ev.After} {
		if d == nil {
			continue
		}
		id := d.String(domain.ReviewTour)
		if id != "" && (len(ids) == 0 || ids[0] != id) {
			ids = append(ids, id)
		}
	}
	return ids
}
