package domain

import (
	"context"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Booking document fields.
const (
	BookingTour    = "tour"
	BookingUser    = "user"
	BookingSession = "session"
)

// Booking records a paid checkout of one tour by one user.
type Booking struct {
	ID        string  `json:"_id,omitempty"`
	Tour      string  `json:"tour" validate:"required,uuid"`
	User      string  `json:"user" validate:"required,uuid"`
	Price     float64 `json:"price" validate:"required,gt=0"`
	Paid      bool    `json:"paid"`
	Session   string  `json:"session,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

var BookingFields = map[string]query.Kind{
	"price":                 query.Number,
	"paid":                  query.Bool,
	docstore.CreatedAtField: query.Time,
}

// ValidateBooking checks a booking document before it is stored.
func ValidateBooking(ctx context.Context, doc docstore.Document) error {
	return structValidator[Booking]()(ctx, doc)
}
