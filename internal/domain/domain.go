// Package domain holds the natours document shapes, their validation rules
// and the indexes each collection relies on.
package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/validator"
)

// Collection names.
const (
	CollectionTours    = "tours"
	CollectionReviews  = "reviews"
	CollectionUsers    = "users"
	CollectionBookings = "bookings"
)

// Index is a secondary index a collection needs. Unique indexes are
// enforced by the store.
type Index struct {
	Collection string
	Name       string
	Fields     []string
	Unique     bool
}

// Indexes lists every index the application relies on. The PostgreSQL
// migrations create the same set.
func Indexes() []Index {
	return []Index{
		{Collection: CollectionTours, Name: "tours_name_key", Fields: []string{"name"}, Unique: true},
		{Collection: CollectionReviews, Name: "reviews_tour_user_key", Fields: []string{"tour", "user"}, Unique: true},
		{Collection: CollectionUsers, Name: "users_email_key", Fields: []string{"email"}, Unique: true},
	}
}

// structValidator decodes the document about to be stored into T and runs
// its validate tags.
func structValidator[T any]() docstore.Validator {
	return func(_ context.Context, doc docstore.Document) error {
		var v T
		if err := docstore.Decode(doc, &v); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return apperrors.InvalidInput("invalid value for " + typeErr.Field)
			}
			return apperrors.InvalidInput("invalid document")
		}
		return validator.Validate(v)
	}
}
