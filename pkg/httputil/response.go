// Package httputil writes the API's JSON envelopes.
//
// Every body carries a status of "success", "fail" (4xx) or "error" (5xx).
// Successful list responses also carry the number of results.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/logger"
	"github.com/MinhajJamraiz/natours/pkg/validator"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 10 << 10

// Response is the JSON envelope used by every endpoint.
type Response struct {
	Status    string            `json:"status"`
	Results   *int              `json:"results,omitempty"`
	Token     string            `json:"token,omitempty"`
	Data      any               `json:"data,omitempty"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status code. Encoding errors are dropped
// because the headers are already sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope around data.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Status: StatusSuccess, Data: data})
}

// WriteList writes a success envelope with a result count.
func WriteList(w http.ResponseWriter, results int, data any) {
	WriteJSON(w, http.StatusOK, Response{Status: StatusSuccess, Results: &results, Data: data})
}

// WriteNoContent answers 204 without a body.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func statusWord(code int) string {
	if code >= http.StatusInternalServerError {
		return StatusError
	}
	return StatusFail
}

// WriteError maps err to an envelope. AppErrors keep their code and message;
// sentinels map to generic messages; anything else is logged and hidden
// behind a 500. The request-scoped logger is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Status:    StatusFail,
			Code:      "VALIDATION_ERROR",
			Message:   "invalid input data",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "internal error",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, appErr.Status, Response{
			Status:    statusWord(appErr.Status),
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code, message := "INTERNAL_ERROR", "something went wrong"
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code, message = "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code, message = "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code, message = "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		code, message = "UNAUTHORIZED", "please log in to get access"
	case errors.Is(err, apperrors.ErrForbidden):
		code, message = "FORBIDDEN", "you do not have permission to perform this action"
	}

	if status >= http.StatusInternalServerError {
		status = http.StatusInternalServerError
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Status: statusWord(status), Code: code, Message: message, RequestID: requestID})
}

// DecodeJSON reads a bounded JSON body into dst and validates it. Unknown
// fields are rejected so that clients cannot set fields the API does not
// expose.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.InvalidInput(fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("request body is empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apperrors.InvalidInput("unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return apperrors.InvalidInput("invalid request body")
		}
	}
	return validator.Validate(dst)
}

// ParseID checks that param is a UUID and returns it in canonical form. On
// failure it writes a 400 and returns false.
func ParseID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Status:    StatusFail,
			Code:      "INVALID_PARAMETER",
			Message:   "invalid id: " + param,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		})
		return "", false
	}
	return id.String(), true
}
