// Package service implements the natours use cases on top of the document
// store.
package service

import (
	"log/slog"

	"github.com/MinhajJamraiz/natours/internal/auth"
	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/email"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/internal/lock"
	"github.com/MinhajJamraiz/natours/internal/payment"
	"github.com/MinhajJamraiz/natours/internal/repository"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Deps are the collaborators of the services.
type Deps struct {
	Store    docstore.Store
	Locker   lock.Locker
	Events   event.Publisher
	Mailer   email.Sender
	Payments payment.Provider
	Tokens   *auth.TokenManager
	Query    query.Config
	User     UserConfig
	BaseURL  string
	Logger   *slog.Logger
}

// Services groups every use case.
type Services struct {
	Rating   *RatingService
	Tours    *TourService
	Reviews  *ReviewService
	Users    *UserService
	Bookings *BookingService
}

// New wires the write pipelines, repositories and services.
func New(d Deps) *Services {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Events == nil {
		d.Events = event.Nop{}
	}
	if d.Locker == nil {
		d.Locker = lock.NewKeyedMutex()
	}
	if d.Mailer == nil {
		d.Mailer = email.NewLogSender(d.Logger)
	}
	builder := query.NewBuilder(d.Query)

	toursColl := d.Store.Collection(domain.CollectionTours)
	reviewsColl := d.Store.Collection(domain.CollectionReviews)

	rating := NewRatingService(toursColl, reviewsColl, d.Locker, d.Events, d.Logger)

	tourRepo := repository.New("tour",
		docstore.NewPipeline(toursColl, d.Logger).Validate(domain.ValidateTour),
	).WithConflictMessage("a tour with this name already exists")
	reviewRepo := repository.New("review",
		NewReviewPipeline(reviewsColl, rating, d.Events, d.Logger),
	).WithConflictMessage("you have already reviewed this tour")
	userRepo := repository.New("user",
		docstore.NewPipeline(d.Store.Collection(domain.CollectionUsers), d.Logger).Validate(domain.ValidateUser),
	).WithConflictMessage("this email address is already in use")
	bookingRepo := repository.New("booking",
		docstore.NewPipeline(d.Store.Collection(domain.CollectionBookings), d.Logger).Validate(domain.ValidateBooking),
	)

	tours := NewTourService(tourRepo, d.Store, builder, d.Logger)
	users := NewUserService(userRepo, d.Tokens, d.Mailer, d.Events, builder, d.User, d.Logger)

	return &Services{
		Rating:   rating,
		Tours:    tours,
		Reviews:  NewReviewService(reviewRepo, tours, d.Store, builder, d.Logger),
		Users:    users,
		Bookings: NewBookingService(bookingRepo, tours, users, d.Payments, d.Events, builder, d.BaseURL, d.Logger),
	}
}
