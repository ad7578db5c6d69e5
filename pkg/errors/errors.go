// Package errors defines the application error type and its HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors wrapped by AppError.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrPaymentFailed = errors.New("payment failed")
	ErrRateLimited   = errors.New("rate limited")
)

// statuses maps each sentinel to its HTTP status, in match order.
var statuses = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrPaymentFailed, http.StatusUnprocessableEntity},
	{ErrRateLimited, http.StatusTooManyRequests},
}

// AppError is an error the API can show to a client.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(status int, code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: cause}
}

// NotFound creates a 404 error naming the missing resource.
func NotFound(resource, id string) *AppError {
	return newError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no %s found with id %s", resource, id), ErrNotFound)
}

// Conflict creates a 409 error, used for unique-key violations.
func Conflict(message string) *AppError {
	return newError(http.StatusConflict, "ALREADY_EXISTS", message, ErrAlreadyExists)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newError(http.StatusBadRequest, "INVALID_INPUT", message, ErrInvalidInput)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newError(http.StatusUnauthorized, "UNAUTHORIZED", message, ErrUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newError(http.StatusForbidden, "FORBIDDEN", message, ErrForbidden)
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *AppError {
	return newError(http.StatusTooManyRequests, "RATE_LIMITED", message, ErrRateLimited)
}

// PaymentFailed creates a 422 error for a rejected checkout.
func PaymentFailed(message string) *AppError {
	return newError(http.StatusUnprocessableEntity, "PAYMENT_FAILED", message, ErrPaymentFailed)
}

// Internal creates a 500 error. The message shown to clients never includes
// err.
func Internal(err error) *AppError {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", "something went wrong", err)
}

// InternalMessage creates a 500 error with a client-safe message.
func InternalMessage(message string, err error) *AppError {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, err)
}

// HTTPStatus returns the HTTP status code for err. Unknown errors are 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, s := range statuses {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
