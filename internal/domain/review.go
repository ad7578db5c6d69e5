package domain

import (
	"context"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Review document fields.
const (
	ReviewTour   = "tour"
	ReviewUser   = "user"
	ReviewRating = "rating"
)

// Review belongs to one tour and one author; an author reviews a tour at
// most once.
type Review struct {
	ID        string  `json:"_id,omitempty"`
	Review    string  `json:"review" validate:"required"`
	Rating    float64 `json:"rating" validate:"required,gte=1,lte=5"`
	Tour      string  `json:"tour" validate:"required,uuid"`
	User      string  `json:"user" validate:"required,uuid"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

var ReviewFields = map[string]query.Kind{
	ReviewRating:            query.Number,
	docstore.CreatedAtField: query.Time,
}

// ValidateReview checks a review document before it is stored.
func ValidateReview(ctx context.Context, doc docstore.Document) error {
	return structValidator[Review]()(ctx, doc)
}
