// Package event publishes natours domain events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/MinhajJamraiz/natours/pkg/kafka"
	"github.com/MinhajJamraiz/natours/pkg/logger"
)

// Topics.
const (
	TopicTourRatingUpdated = "natours.tour.rating_updated"
	TopicReviewWritten     = "natours.review.written"
	TopicBookingCreated    = "natours.booking.created"
	TopicUserSignedUp      = "natours.user.signed_up"
)

const source = "natours"

// RatingUpdated is published after every rating recompute.
type RatingUpdated struct {
	TourID         string  `json:"tour_id"`
	RatingQuantity int     `json:"rating_quantity"`
	RatingAverage  float64 `json:"rating_average"`
}

// ReviewWritten is published after a review is created, updated or deleted.
type ReviewWritten struct {
	ReviewID string  `json:"review_id"`
	TourID   string  `json:"tour_id"`
	UserID   string  `json:"user_id"`
	Rating   float64 `json:"rating"`
	Op       string  `json:"op"`
}

type BookingCreated struct {
	BookingID string  `json:"booking_id"`
	TourID    string  `json:"tour_id"`
	UserID    string  `json:"user_id"`
	Price     float64 `json:"price"`
}

type UserSignedUp struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Publisher sends domain events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	RatingUpdated(ctx context.Context, e RatingUpdated) error
	ReviewWritten(ctx context.Context, e ReviewWritten) error
	BookingCreated(ctx context.Context, e BookingCreated) error
	UserSignedUp(ctx context.Context, e UserSignedUp) error
}

// Sink is what Producer writes to; *pkgkafka.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes events to Kafka.
type Producer struct {
	sink   Sink
	logger *slog.Logger
}

func NewProducer(sink Sink, l *slog.Logger) *Producer {
	return &Producer{sink: sink, logger: l}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType, aggregateID string, data any) error {
	ev, err := pkgkafka.NewEvent(topic, aggregateType, aggregateID, source, data)
	if err != nil {
		return err
	}
	ev.CorrelationID = logger.CorrelationIDFromContext(ctx)
	if err := p.sink.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) RatingUpdated(ctx context.Context, e RatingUpdated) error {
	return p.publish(ctx, TopicTourRatingUpdated, "tour", e.TourID, e)
}

func (p *Producer) ReviewWritten(ctx context.Context, e ReviewWritten) error {
	return p.publish(ctx, TopicReviewWritten, "review", e.ReviewID, e)
}

func (p *Producer) BookingCreated(ctx context.Context, e BookingCreated) error {
	return p.publish(ctx, TopicBookingCreated, "booking", e.BookingID, e)
}

func (p *Producer) UserSignedUp(ctx context.Context, e UserSignedUp) error {
	return p.publish(ctx, TopicUserSignedUp, "user", e.UserID, e)
}

// Nop drops every event. It is used when Kafka is disabled.
type Nop struct{}

func (Nop) RatingUpdated(context.Context, RatingUpdated) error   { return nil }
func (Nop) ReviewWritten(context.Context, ReviewWritten) error   { return nil }
func (Nop) BookingCreated(context.Context, BookingCreated) error { return nil }
func (Nop) UserSignedUp(context.Context, UserSignedUp) error     { return nil }
