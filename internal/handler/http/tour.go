package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MinhajJamraiz/natours/internal/service"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/geo"
	"github.com/MinhajJamraiz/natours/pkg/httputil"
)

// TourHandler handles HTTP requests for tour endpoints.
type TourHandler struct {
	service *service.TourService
	logger  *slog.Logger
}

// NewTourHandler creates a new tour HTTP handler.
func NewTourHandler(svc *service.TourService, logger *slog.Logger) *TourHandler {
	return &TourHandler{service: svc, logger: logger}
}

// ListTours handles GET /api/v1/tours
func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	desc, _ := description(r)
	res, err := h.service.List(r.Context(), desc)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, res)
}

// TopCheap handles GET /api/v1/tours/top-5-cheap
func (h *TourHandler) TopCheap(w http.ResponseWriter, r *http.Request) {
	desc, _ := description(r)
	res, err := h.service.List(r.Context(), service.TopCheapQuery(desc))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, res)
}

// Stats handles GET /api/v1/tours/tour-stats
func (h *TourHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]any{"stats": stats})
}

// MonthlyPlan handles GET /api/v1/tours/monthly-plan/{year}
func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid year: "+chi.URLParam(r, "year")), h.logger)
		return
	}

	plan, err := h.service.MonthlyPlan(r.Context(), year)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]any{"plan": plan})
}

// ToursWithin handles GET /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}
func (h *TourHandler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	center, unit, err := geoParams(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil || distance < 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid distance: "+chi.URLParam(r, "distance")), h.logger)
		return
	}

	tours, err := h.service.Within(r.Context(), center, distance, unit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, len(tours), wrap(tours))
}

// Distances handles GET /api/v1/tours/distances/{latlng}/unit/{unit}
func (h *TourHandler) Distances(w http.ResponseWriter, r *http.Request) {
	from, unit, err := geoParams(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	distances, err := h.service.Distances(r.Context(), from, unit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(distances))
}

func geoParams(r *http.Request) (geo.Point, geo.Unit, error) {
	p, err := geo.ParsePoint(chi.URLParam(r, "latlng"))
	if err != nil {
		return geo.Point{}, "", apperrors.InvalidInput("please provide latitude and longitude in the format lat,lng")
	}
	u, err := geo.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		return geo.Point{}, "", apperrors.InvalidInput(err.Error())
	}
	return p, u, nil
}

// GetTour handles GET /api/v1/tours/{id}
func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	_, expand := description(r)

	tour, err := h.service.Get(r.Context(), id, expand)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(tour))
}

// CreateTour handles POST /api/v1/tours
func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	var in service.TourInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	tour, err := h.service.Create(r.Context(), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, wrap(tour))
}

// UpdateTour handles PATCH /api/v1/tours/{id}
func (h *TourHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var in service.TourInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	tour, err := h.service.Update(r.Context(), id, &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(tour))
}

// DeleteTour handles DELETE /api/v1/tours/{id}
func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
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
