package http

import (
	"log/slog"
	"net/http"

	"github.com/MinhajJamraiz/natours/internal/service"
	"github.com/MinhajJamraiz/natours/pkg/httputil"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
)

// CheckoutCompleted is the webhook event that creates a booking.
const CheckoutCompleted = "checkout.session.completed"

// BookingHandler handles HTTP requests for booking endpoints.
type BookingHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewBookingHandler creates a new booking HTTP handler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: svc, logger: logger}
}

// WebhookRequest is the event a payment provider posts after checkout.
type WebhookRequest struct {
	Type      string `json:"type" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
}

// Checkout handles GET /api/v1/bookings/checkout-session/{tourId}
func (h *BookingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	tourID, ok := urlID(w, r, "tourId")
	if !ok {
		return
	}

	session, err := h.service.Checkout(r.Context(), middleware.PrincipalFromContext(r.Context()), tourID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  httputil.StatusSuccess,
		"session": session,
	})
}

// Webhook handles POST /api/v1/bookings/webhook-checkout. Events other than
// a completed checkout are acknowledged and ignored.
func (h *BookingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if req.Type == CheckoutCompleted {
		if _, err := h.service.ConfirmCheckout(r.Context(), req.SessionID); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	} else {
		h.logger.DebugContext(r.Context(), "ignoring webhook event", slog.String("type", req.Type))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// MyTours handles GET /api/v1/bookings/my-tours
func (h *BookingHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.service.MyTours(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, len(tours), wrap(tours))
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	desc, _ := description(r)
	res, err := h.service.List(r.Context(), desc)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, res)
}

// GetBooking handles GET /api/v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(booking))
}

// DeleteBooking handles DELETE /api/v1/bookings/{id}
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}
