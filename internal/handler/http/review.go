package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MinhajJamraiz/natours/internal/service"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/httputil"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
)

// ReviewHandler handles HTTP requests for review endpoints. The same
// handler serves /api/v1/reviews and /api/v1/tours/{tourId}/reviews.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// CreateReviewRequest is the JSON request body for creating a review. On
// the nested route the tour comes from the path.
type CreateReviewRequest struct {
	Review *string  `json:"review,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
	Tour   string   `json:"tour,omitempty" validate:"omitempty,uuid"`
}

// tourParam returns the tour of a nested route, or "" on the top-level one.
func tourParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if chi.URLParam(r, "tourId") == "" {
		return "", true
	}
	return urlID(w, r, "tourId")
}

// ListReviews handles GET /api/v1/reviews and GET /api/v1/tours/{tourId}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	tourID, ok := tourParam(w, r)
	if !ok {
		return
	}
	desc, expand := description(r)

	res, err := h.service.List(r.Context(), tourID, desc, expand)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, res)
}

// GetReview handles GET /api/v1/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	_, expand := description(r)

	review, err := h.service.Get(r.Context(), id, expand)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(review))
}

// CreateReview handles POST /api/v1/reviews and POST /api/v1/tours/{tourId}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	tourID, ok := tourParam(w, r)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if tourID == "" {
		tourID = req.Tour
	}
	if tourID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("a review must belong to a tour"), h.logger)
		return
	}

	review, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), tourID, &service.ReviewInput{
		Review: req.Review,
		Rating: req.Rating,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, wrap(review))
}

// UpdateReview handles PATCH /api/v1/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var in service.ReviewInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	review, err := h.service.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), id, &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(review))
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}
