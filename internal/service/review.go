package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/internal/repository"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Review expansions.
const (
	ExpandUser = "user"
	ExpandTour = "tour"
)

// ReviewInput is the client-settable part of a review.
type ReviewInput struct {
	Review *string  `json:"review,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// ReviewService implements the review operations. Every write goes through
// the review pipeline, whose hooks keep the tour ratings current.
type ReviewService struct {
	repo    *repository.Repository
	tours   *TourService
	store   docstore.Store
	builder *query.Builder
	logger  *slog.Logger
}

// NewReviewService creates a review service.
func NewReviewService(repo *repository.Repository, tours *TourService, store docstore.Store, builder *query.Builder, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repo:    repo,
		tours:   tours,
		store:   store,
		builder: builder.WithFields(domain.ReviewFields),
		logger:  logger,
	}
}

// NewReviewPipeline builds the review write path: validation, then the
// rating recompute, then the review event.
func NewReviewPipeline(coll docstore.Collection, rating *RatingService, events event.Publisher, logger *slog.Logger) *docstore.Pipeline {
	if events == nil {
		events = event.Nop{}
	}
	return docstore.NewPipeline(coll, logger).
		Validate(domain.ValidateReview).
		OnWrite(rating.Hook(), reviewWrittenHook(events))
}

func reviewWrittenHook(events event.Publisher) docstore.Hook {
	return func(ctx context.Context, ev docstore.WriteEvent) error {
		doc := ev.After
		if doc == nil {
			doc = ev.Before
		}
		rating, _ := doc.Float(domain.ReviewRating)
		return events.ReviewWritten(ctx, event.ReviewWritten{
			ReviewID: doc.ID(),
			TourID:   doc.String(domain.ReviewTour),
			UserID:   doc.String(domain.ReviewUser),
			Rating:   rating,
			Op:       string(ev.Op),
		})
	}
}

// List runs a client query over reviews, restricted to tourID when it is
// not empty.
func (s *ReviewService) List(ctx context.Context, tourID string, desc url.Values, expand []string) (query.Result, error) {
	var f docstore.Filter
	if tourID != "" {
		f = docstore.Filter{docstore.Eq(domain.ReviewTour, tourID)}
	}
	res, err := s.builder.Run(ctx, desc, s.repo.Find(f))
	if err != nil {
		return query.Result{}, fmt.Errorf("list reviews: %w", err)
	}
	if err := s.expand(ctx, res.Data, expand); err != nil {
		return query.Result{}, err
	}
	return res, nil
}

// Get returns one review with the requested expansions.
func (s *ReviewService) Get(ctx context.Context, id string, expand []string) (docstore.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, []docstore.Document{doc}, expand); err != nil {
		return nil, err
	}
	return doc, nil
}

// Create stores a review of tourID written by userID. A user reviews a tour
// at most once.
func (s *ReviewService) Create(ctx context.Context, userID, tourID string, in *ReviewInput) (docstore.Document, error) {
	if _, err := s.tours.visible(ctx, tourID); err != nil {
		return nil, err
	}
	doc, err := docstore.Normalize(in)
	if err != nil {
		return nil, err
	}
	doc[domain.ReviewTour] = tourID
	doc[domain.ReviewUser] = userID

	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", created.ID()),
		slog.String("tour_id", tourID),
		slog.String("user_id", userID),
	)
	return created, nil
}

// Update changes the text or rating of a review. Only its author or an
// admin may do so.
func (s *ReviewService) Update(ctx context.Context, p *middleware.Principal, id string, in *ReviewInput) (docstore.Document, error) {
	if err := s.authorize(ctx, p, id); err != nil {
		return nil, err
	}
	patch, err := docstore.Normalize(in)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, patch)
}

// Delete removes a review. Only its author or an admin may do so.
func (s *ReviewService) Delete(ctx context.Context, p *middleware.Principal, id string) error {
	if err := s.authorize(ctx, p, id); err != nil {
		return err
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "review deleted", slog.String("review_id", id))
	return nil
}

func (s *ReviewService) authorize(ctx context.Context, p *middleware.Principal, id string) error {
	if p == nil {
		return apperrors.Unauthorized("you are not logged in, please log in to get access")
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Role != domain.RoleAdmin && doc.String(domain.ReviewUser) != p.UserID {
		return apperrors.Forbidden("you can only change your own reviews")
	}
	return nil
}

func (s *ReviewService) expand(ctx context.Context, docs []docstore.Document, expand []string) error {
	var rels []docstore.Relation
	if slices.Contains(expand, ExpandUser) {
		rels = append(rels, reviewAuthor())
	}
	if slices.Contains(expand, ExpandTour) {
		rels = append(rels, docstore.Relation{
			Name:         domain.ReviewTour,
			LocalField:   domain.ReviewTour,
			Collection:   domain.CollectionTours,
			ForeignField: docstore.IDField,
			Select:       docstore.Projection{Include: []string{domain.TourName, domain.TourSlug, domain.TourSecret}},
		})
	}
	if len(rels) == 0 {
		return nil
	}
	if err := docstore.Populate(ctx, s.store, docs, rels...); err != nil {
		return fmt.Errorf("expand reviews: %w", err)
	}
	for _, d := range docs {
		hideSecretTour(d)
	}
	return nil
}

// hideSecretTour blanks an expanded tour that is secret.
func hideSecretTour(review docstore.Document) {
	t, ok := review[domain.ReviewTour].(map[string]any)
	if !ok {
		return
	}
	if secret, _ := t[domain.TourSecret].(bool); secret {
		review[domain.ReviewTour] = nil
		return
	}
	delete(t, domain.TourSecret)
}
