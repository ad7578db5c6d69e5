package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/internal/payment"
	"github.com/MinhajJamraiz/natours/internal/repository"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Currency of every checkout.
const Currency = "usd"

// BookingService implements checkout and bookings.
type BookingService struct {
	repo     *repository.Repository
	tours    *TourService
	users    *UserService
	provider payment.Provider
	events   event.Publisher
	builder  *query.Builder
	baseURL  string
	logger   *slog.Logger
}

// NewBookingService creates a booking service. baseURL is where checkout
// redirects back to.
func NewBookingService(repo *repository.Repository, tours *TourService, users *UserService, provider payment.Provider, events event.Publisher, builder *query.Builder, baseURL string, logger *slog.Logger) *BookingService {
	if events == nil {
		events = event.Nop{}
	}
	return &BookingService{
		repo:     repo,
		tours:    tours,
		users:    users,
		provider: provider,
		events:   events,
		builder:  builder.WithFields(domain.BookingFields),
		baseURL:  baseURL,
		logger:   logger,
	}
}

// Checkout opens a payment session for the caller to book tourID.
func (s *BookingService) Checkout(ctx context.Context, p *middleware.Principal, tourID string) (*payment.Session, error) {
	tour, err := s.tours.visible(ctx, tourID)
	if err != nil {
		return nil, err
	}
	price, _ := tour.Float(domain.TourPrice)

	session, err := s.provider.CreateCheckoutSession(ctx, &payment.CheckoutInput{
		TourID:        tourID,
		TourName:      tour.String(domain.TourName) + " Tour",
		Summary:       tour.String("summary"),
		CustomerEmail: p.Email,
		Amount:        int64(math.Round(price * 100)),
		Currency:      Currency,
		SuccessURL:    s.baseURL + "/my-tours?alert=booking",
		CancelURL:     s.baseURL + "/tour/" + tour.String(domain.TourSlug),
	})
	if err != nil {
		return nil, apperrors.PaymentFailed(err.Error())
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", session.ID),
		slog.String("tour_id", tourID),
		slog.String("provider", s.provider.Name()),
	)
	return session, nil
}

// ConfirmCheckout completes a paid session and records the booking.
func (s *BookingService) ConfirmCheckout(ctx context.Context, sessionID string) (docstore.Document, error) {
	session, err := s.provider.ConfirmSession(ctx, sessionID)
	switch {
	case errors.Is(err, payment.ErrSessionNotFound):
		return nil, apperrors.NotFound("checkout session", sessionID)
	case errors.Is(err, payment.ErrSessionCompleted):
		return nil, apperrors.Conflict("checkout session already completed")
	case err != nil:
		return nil, apperrors.PaymentFailed(err.Error())
	}

	user, err := s.users.ByEmail(ctx, session.CustomerEmail)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Create(ctx, docstore.Document{
		domain.BookingTour:    session.ClientReferenceID,
		domain.BookingUser:    user.ID(),
		"price":               float64(session.AmountTotal) / 100,
		"paid":                true,
		domain.BookingSession: session.ID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", booking.ID()),
		slog.String("tour_id", session.ClientReferenceID),
		slog.String("user_id", user.ID()),
	)
	price, _ := booking.Float("price")
	if err := s.events.BookingCreated(ctx, event.BookingCreated{
		BookingID: booking.ID(),
		TourID:    session.ClientReferenceID,
		UserID:    user.ID(),
		Price:     price,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish booking", slog.String("error", err.Error()))
	}
	return booking, nil
}

// MyTours returns the visible tours the user has booked, fetched with one
// query for all bookings.
func (s *BookingService) MyTours(ctx context.Context, userID string) ([]docstore.Document, error) {
	bookings, err := s.repo.List(ctx, s.repo.Find(docstore.Filter{docstore.Eq(domain.BookingUser, userID)}))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(bookings))
	ids := make([]any, 0, len(bookings))
	for _, b := range bookings {
		id := b.String(domain.BookingTour)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []docstore.Document{}, nil
	}

	tours, err := s.tours.repo.List(ctx, s.tours.repo.
		Find(visibleTours()).
		Where(docstore.In(docstore.IDField, ids...)).
		Sort(docstore.SortKey{Field: docstore.IDField}))
	if err != nil {
		return nil, fmt.Errorf("booked tours: %w", err)
	}
	for _, t := range tours {
		addDurationWeeks(t)
	}
	return tours, nil
}

// List runs a client query over all bookings.
func (s *BookingService) List(ctx context.Context, desc url.Values) (query.Result, error) {
	res, err := s.builder.Run(ctx, desc, s.repo.Find(nil))
	if err != nil {
		return query.Result{}, fmt.Errorf("list bookings: %w", err)
	}
	return res, nil
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, id string) (docstore.Document, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a booking.
func (s *BookingService) Delete(ctx context.Context, id string) error {
	_, err := s.repo.Delete(ctx, id)
	return err
}
