package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/service"
	"github.com/MinhajJamraiz/natours/pkg/health"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
)

// Config holds the router settings.
type Config struct {
	ServiceName string
	Production  bool
	Cookie      CookieConfig
	RateLimit   middleware.RateLimitConfig
	// CORS is applied to /api when it lists at least one origin.
	CORS        middleware.CORSConfig
}

// NewRouter creates a chi router with all natours routes registered. The
// rate limiter's cleanup stops when ctx is done.
func NewRouter(
	ctx context.Context,
	svcs *service.Services,
	healthHandler *health.Handler,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders(cfg.Production))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	protect := middleware.Auth(svcs.Users.Authenticate)

	tourHandler := NewTourHandler(svcs.Tours, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)
	userHandler := NewUserHandler(svcs.Users, cfg.Cookie, logger)
	bookingHandler := NewBookingHandler(svcs.Bookings, logger)

	reviewRoutes := func(r chi.Router) {
		r.Get("/", reviewHandler.ListReviews)
		r.Get("/{id}", reviewHandler.GetReview)

		r.Group(func(r chi.Router) {
			r.Use(protect)

			r.With(middleware.RequireRole(domain.RoleUser)).Post("/", reviewHandler.CreateReview)
			r.With(middleware.RequireRole(domain.RoleUser, domain.RoleAdmin)).Patch("/{id}", reviewHandler.UpdateReview)
			r.With(middleware.RequireRole(domain.RoleUser, domain.RoleAdmin)).Delete("/{id}", reviewHandler.DeleteReview)
		})
	}

	r.Route("/api", func(r chi.Router) {
		if len(cfg.CORS.Origins) > 0 {
			r.Use(middleware.CORS(cfg.CORS))
		}
		r.Use(middleware.RateLimit(ctx, cfg.RateLimit, logger))
		r.Use(middleware.ContentTypeJSON)

		// Tour API endpoints
		r.Route("/v1/tours", func(r chi.Router) {
			r.Get("/", tourHandler.ListTours)
			r.Get("/top-5-cheap", tourHandler.TopCheap)
			r.Get("/tour-stats", tourHandler.Stats)
			r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", tourHandler.ToursWithin)
			r.Get("/distances/{latlng}/unit/{unit}", tourHandler.Distances)
			r.With(protect, middleware.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide)).
				Get("/monthly-plan/{year}", tourHandler.MonthlyPlan)
			r.Get("/{id}", tourHandler.GetTour)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide))

				r.Post("/", tourHandler.CreateTour)
				r.Patch("/{id}", tourHandler.UpdateTour)
				r.Delete("/{id}", tourHandler.DeleteTour)
			})

			// Review API endpoints (nested under tours)
			r.Route("/{tourId}/reviews", reviewRoutes)
		})

		// Review API endpoints
		r.Route("/v1/reviews", reviewRoutes)

		// User API endpoints
		r.Route("/v1/users", func(r chi.Router) {
			r.Post("/signup", userHandler.Signup)
			r.Post("/login", userHandler.Login)
			r.Get("/logout", userHandler.Logout)
			r.Post("/forgotPassword", userHandler.ForgotPassword)
			r.Patch("/resetPassword/{token}", userHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(protect)

				r.Get("/me", userHandler.Me)
				r.Patch("/updateMyPassword", userHandler.UpdatePassword)
				r.Patch("/updateMe", userHandler.UpdateMe)
				r.Delete("/deleteMe", userHandler.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(domain.RoleAdmin))

					r.Get("/", userHandler.ListUsers)
					r.Get("/{id}", userHandler.GetUser)
					r.Patch("/{id}", userHandler.UpdateUser)
					r.Delete("/{id}", userHandler.DeleteUser)
				})
			})
		})

		// Booking API endpoints
		r.Route("/v1/bookings", func(r chi.Router) {
			r.Post("/webhook-checkout", bookingHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(protect)

				r.Get("/checkout-session/{tourId}", bookingHandler.Checkout)
				r.Get("/my-tours", bookingHandler.MyTours)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide))

					r.Get("/", bookingHandler.ListBookings)
					r.Get("/{id}", bookingHandler.GetBooking)
					r.Delete("/{id}", bookingHandler.DeleteBooking)
				})
			})
		})
	})

	return r
}
