package domain

import (
	"context"
	"math"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Tour difficulties.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// Rating summary defaults. A tour nobody has reviewed carries
// DefaultRatingAverage with a zero quantity.
const (
	DefaultRatingAverage  = 4.5
	DefaultRatingQuantity = 0
)

// Tour document fields.
const (
	TourName           = "name"
	TourSlug           = "slug"
	TourPrice          = "price"
	TourDifficulty     = "difficulty"
	TourRatingAverage  = "ratingAverage"
	TourRatingQuantity = "ratingQuantity"
	TourSecret         = "secretTour"
	TourGuides         = "guides"
	TourStartDates     = "startDates"
	TourStartLocation  = "startLocation"
)

// Location is a GeoJSON point with a description. Coordinates are
// [longitude, latitude]. Day is set for the stops of a tour.
type Location struct {
	Type        string    `json:"type,omitempty" validate:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" validate:"len=2"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         float64   `json:"day,omitempty" validate:"gte=0"`
}

// Tour is the owner of reviews. RatingAverage and RatingQuantity summarise
// its reviews and are only ever written by the rating recompute.
type Tour struct {
	ID             string   `json:"_id,omitempty"`
	Name           string   `json:"name" validate:"required,min=10,max=40"`
	Slug           string   `json:"slug,omitempty"`
	Duration       float64  `json:"duration" validate:"required,gt=0"`
	MaxGroupSize   float64  `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty     string   `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingAverage  float64  `json:"ratingAverage" validate:"gte=1,lte=5"`
	RatingQuantity float64  `json:"ratingQuantity" validate:"gte=0"`
	Price          float64  `json:"price" validate:"required,gt=0"`
	PriceDiscount  float64  `json:"priceDiscount,omitempty" validate:"omitempty,gte=0,ltfield=Price"`
	Summary        string   `json:"summary" validate:"required"`
	Description    string   `json:"description,omitempty"`
	ImageCover     string   `json:"imageCover" validate:"required"`
	Images         []string `json:"images,omitempty"`
	StartDates     []string `json:"startDates,omitempty" validate:"omitempty,dive,datetime=2006-01-02T15:04:05Z07:00"`
	SecretTour     bool     `json:"secretTour,omitempty"`
	Guides         []string `json:"guides,omitempty" validate:"omitempty,dive,uuid"`
	CreatedAt      string   `json:"createdAt,omitempty"`

	StartLocation *Location  `json:"startLocation,omitempty"`
	Locations     []Location `json:"locations,omitempty" validate:"omitempty,dive"`
}

// TourFields declares the tour field types for list queries.
var TourFields = map[string]query.Kind{
	"duration":              query.Number,
	"maxGroupSize":          query.Number,
	TourRatingAverage:       query.Number,
	TourRatingQuantity:      query.Number,
	TourPrice:               query.Number,
	"priceDiscount":         query.Number,
	TourSecret:              query.Bool,
	TourStartDates:          query.Time,
	docstore.CreatedAtField: query.Time,
}

// ValidateTour checks a tour document before it is stored.
func ValidateTour(ctx context.Context, doc docstore.Document) error {
	return structValidator[Tour]()(ctx, doc)
}

// RoundRating rounds an average to one decimal.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}
