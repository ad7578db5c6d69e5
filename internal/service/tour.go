package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/repository"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/geo"
	"github.com/MinhajJamraiz/natours/pkg/query"
	"github.com/MinhajJamraiz/natours/pkg/slug"
)

// Tour expansions.
const (
	ExpandReviews = "reviews"
	ExpandGuides  = "guides"
)

// GuideFields are the user fields shown for a tour guide.
var GuideFields = []string{"name", "email", "photo", "role"}

// TourInput is the client-settable part of a tour. Nil fields are left
// unchanged on update. The rating summary is not settable.
type TourInput struct {
	Name          *string            `json:"name,omitempty"`
	Duration      *float64           `json:"duration,omitempty"`
	MaxGroupSize  *float64           `json:"maxGroupSize,omitempty"`
	Difficulty    *string            `json:"difficulty,omitempty"`
	Price         *float64           `json:"price,omitempty"`
	PriceDiscount *float64           `json:"priceDiscount,omitempty"`
	Summary       *string            `json:"summary,omitempty"`
	Description   *string            `json:"description,omitempty"`
	ImageCover    *string            `json:"imageCover,omitempty"`
	Images        *[]string          `json:"images,omitempty"`
	StartDates    *[]string          `json:"startDates,omitempty"`
	SecretTour    *bool              `json:"secretTour,omitempty"`
	Guides        *[]string          `json:"guides,omitempty"`
	StartLocation *domain.Location   `json:"startLocation,omitempty"`
	Locations     *[]domain.Location `json:"locations,omitempty"`
}

// TourStats summarises the well-rated tours of one difficulty.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// TourDistance is how far a tour starts from a point.
type TourDistance struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// TopCheapQuery is the description behind the top-5-cheap alias.
func TopCheapQuery(desc url.Values) url.Values {
	out := url.Values{}
	for k, v := range desc {
		out[k] = v
	}
	out.Set(query.KeyLimit, "5")
	out.Set(query.KeySort, "-ratingAverage,price")
	out.Set(query.KeyFields, "name,price,ratingAverage,summary,difficulty")
	return out
}

// TourService implements the tour operations. Secret tours are invisible to
// every read and write.
type TourService struct {
	repo    *repository.Repository
	store   docstore.Store
	builder *query.Builder
	logger  *slog.Logger
}

// NewTourService creates a tour service.
func NewTourService(repo *repository.Repository, store docstore.Store, builder *query.Builder, logger *slog.Logger) *TourService {
	return &TourService{
		repo:    repo,
		store:   store,
		builder: builder.WithFields(domain.TourFields),
		logger:  logger,
	}
}

func visibleTours() docstore.Filter {
	return docstore.Filter{docstore.Ne(domain.TourSecret, true)}
}

// List runs a client query over visible tours.
func (s *TourService) List(ctx context.Context, desc url.Values) (query.Result, error) {
	res, err := s.builder.Run(ctx, desc, s.repo.Find(visibleTours()))
	if err != nil {
		return query.Result{}, fmt.Errorf("list tours: %w", err)
	}
	for _, d := range res.Data {
		addDurationWeeks(d)
	}
	return res, nil
}

// Get returns a visible tour with the requested expansions.
func (s *TourService) Get(ctx context.Context, id string, expand []string) (docstore.Document, error) {
	doc, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}

	docs := []docstore.Document{doc}
	if slices.Contains(expand, ExpandGuides) {
		if err := docstore.Populate(ctx, s.store, docs, docstore.Relation{
			Name:         domain.TourGuides,
			LocalField:   domain.TourGuides,
			Collection:   domain.CollectionUsers,
			ForeignField: docstore.IDField,
			Select:       docstore.Projection{Include: GuideFields},
			Many:         true,
		}); err != nil {
			return nil, fmt.Errorf("expand guides: %w", err)
		}
	}
	if slices.Contains(expand, ExpandReviews) {
		if err := docstore.Populate(ctx, s.store, docs, docstore.Relation{
			Name:         ExpandReviews,
			LocalField:   docstore.IDField,
			Collection:   domain.CollectionReviews,
			ForeignField: domain.ReviewTour,
			Select:       docstore.Projection{Exclude: []string{docstore.VersionField}},
			Many:         true,
		}); err != nil {
			return nil, fmt.Errorf("expand reviews: %w", err)
		}
		if err := docstore.Populate(ctx, s.store, nested(doc, ExpandReviews), reviewAuthor()); err != nil {
			return nil, fmt.Errorf("expand review authors: %w", err)
		}
	}

	addDurationWeeks(doc)
	return doc, nil
}

// Create stores a new tour with a default rating summary.
func (s *TourService) Create(ctx context.Context, in *TourInput) (docstore.Document, error) {
	doc, err := docstore.Normalize(in)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		doc[domain.TourSlug] = slug.Generate(*in.Name)
	}
	doc[domain.TourRatingAverage] = domain.DefaultRatingAverage
	doc[domain.TourRatingQuantity] = float64(domain.DefaultRatingQuantity)

	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tour created",
		slog.String("tour_id", created.ID()),
		slog.String("name", created.String(domain.TourName)),
	)
	addDurationWeeks(created)
	return created, nil
}

// Update applies the set fields of in. Renaming a tour regenerates its slug.
func (s *TourService) Update(ctx context.Context, id string, in *TourInput) (docstore.Document, error) {
	if _, err := s.visible(ctx, id); err != nil {
		return nil, err
	}
	patch, err := docstore.Normalize(in)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		patch[domain.TourSlug] = slug.Generate(*in.Name)
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	addDurationWeeks(updated)
	return updated, nil
}

// Delete removes a tour. Its reviews are kept.
func (s *TourService) Delete(ctx context.Context, id string) error {
	if _, err := s.visible(ctx, id); err != nil {
		return err
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "tour deleted", slog.String("tour_id", id))
	return nil
}

// Stats groups the visible tours rated 4.5 or better by difficulty, cheapest
// average price first.
func (s *TourService) Stats(ctx context.Context) ([]TourStats, error) {
	groups, err := s.repo.Aggregate(ctx, docstore.Group{
		Match: visibleTours().And(docstore.Condition{
			Field: domain.TourRatingAverage,
			Op:    docstore.OpGte,
			Value: domain.DefaultRatingAverage,
		}),
		By: domain.TourDifficulty,
		Accumulators: []docstore.Accumulator{
			{Name: "numTours", Kind: docstore.AccCount},
			{Name: "numRatings", Kind: docstore.AccSum, Field: domain.TourRatingQuantity},
			{Name: "avgRating", Kind: docstore.AccAvg, Field: domain.TourRatingAverage},
			{Name: "avgPrice", Kind: docstore.AccAvg, Field: domain.TourPrice},
			{Name: "minPrice", Kind: docstore.AccMin, Field: domain.TourPrice},
			{Name: "maxPrice", Kind: docstore.AccMax, Field: domain.TourPrice},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}

	stats := make([]TourStats, 0, len(groups))
	for _, g := range groups {
		stats = append(stats, TourStats{
			Difficulty: strings.ToUpper(g.Key),
			NumTours:   int(g.Values["numTours"]),
			NumRatings: int(g.Values["numRatings"]),
			AvgRating:  domain.RoundRating(g.Values["avgRating"]),
			AvgPrice:   g.Values["avgPrice"],
			MinPrice:   g.Values["minPrice"],
			MaxPrice:   g.Values["maxPrice"],
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].AvgPrice < stats[j].AvgPrice })
	return stats, nil
}

// MonthlyPlan counts the starts of visible tours per month of year. Busiest
// months come first and months without starts are left out.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	docs, err := s.repo.List(ctx, s.repo.Find(visibleTours()).Select(docstore.Projection{
		Include: []string{domain.TourName, domain.TourStartDates},
	}))
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}

	months := make(map[int]*MonthPlan)
	for _, doc := range docs {
		dates, _ := doc[domain.TourStartDates].([]any)
		for _, d := range dates {
			raw, _ := d.(string)
			start, err := docstore.ParseTime(raw)
			if err != nil || start.UTC().Year() != year {
				continue
			}
			m := int(start.UTC().Month())
			p, ok := months[m]
			if !ok {
				p = &MonthPlan{Month: m}
				months[m] = p
			}
			p.NumTourStarts++
			p.Tours = append(p.Tours, doc.String(domain.TourName))
		}
	}

	plan := make([]MonthPlan, 0, len(months))
	for _, p := range months {
		plan = append(plan, *p)
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].NumTourStarts != plan[j].NumTourStarts {
			return plan[i].NumTourStarts > plan[j].NumTourStarts
		}
		return plan[i].Month < plan[j].Month
	})
	return plan, nil
}

// Within returns the visible tours starting no further than radius from
// center.
func (s *TourService) Within(ctx context.Context, center geo.Point, radius float64, unit geo.Unit) ([]docstore.Document, error) {
	docs, err := s.repo.List(ctx, s.repo.Find(visibleTours()))
	if err != nil {
		return nil, fmt.Errorf("tours within: %w", err)
	}
	out := make([]docstore.Document, 0, len(docs))
	for _, doc := range docs {
		if p, ok := startPoint(doc); ok && geo.Within(center, p, radius, unit) {
			addDurationWeeks(doc)
			out = append(out, doc)
		}
	}
	return out, nil
}

// Distances returns how far every visible tour with a start location starts
// from from, nearest first.
func (s *TourService) Distances(ctx context.Context, from geo.Point, unit geo.Unit) ([]TourDistance, error) {
	docs, err := s.repo.List(ctx, s.repo.Find(visibleTours()).Select(docstore.Projection{
		Include: []string{domain.TourName, domain.TourStartLocation},
	}))
	if err != nil {
		return nil, fmt.Errorf("tour distances: %w", err)
	}
	out := make([]TourDistance, 0, len(docs))
	for _, doc := range docs {
		p, ok := startPoint(doc)
		if !ok {
			continue
		}
		out = append(out, TourDistance{
			ID:       doc.ID(),
			Name:     doc.String(domain.TourName),
			Distance: geo.Distance(from, p, unit),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// startPoint reads the GeoJSON coordinates of a tour's start location.
func startPoint(doc docstore.Document) (geo.Point, bool) {
	raw, _ := docstore.Lookup(doc, domain.TourStartLocation+".coordinates")
	list, _ := raw.([]any)
	coords := make([]float64, 0, len(list))
	for _, v := range list {
		f, ok := v.(float64)
		if !ok {
			return geo.Point{}, false
		}
		coords = append(coords, f)
	}
	return geo.FromCoordinates(coords)
}

func (s *TourService) visible(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if secret, _ := doc[domain.TourSecret].(bool); secret {
		return nil, apperrors.NotFound("tour", id)
	}
	return doc, nil
}

// addDurationWeeks sets the derived duration in weeks when the duration was
// selected.
func addDurationWeeks(doc docstore.Document) {
	if d, ok := doc.Float("duration"); ok {
		doc["durationWeeks"] = d / 7
	}
}

// nested returns the expanded documents stored under field. They share
// storage with doc so that populating them updates doc.
func nested(doc docstore.Document, field string) []docstore.Document {
	list, _ := doc[field].([]any)
	out := make([]docstore.Document, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, docstore.Document(m))
		}
	}
	return out
}

func reviewAuthor() docstore.Relation {
	return docstore.Relation{
		Name:         domain.ReviewUser,
		LocalField:   domain.ReviewUser,
		Collection:   domain.CollectionUsers,
		ForeignField: docstore.IDField,
		Select:       docstore.Projection{Include: []string{"name", "photo"}},
	}
}
