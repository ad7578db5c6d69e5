package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
)

func TestRating_ReviewLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.createTour(t, "The Forest Hiker", 397)
	a1, a2 := newUserID(), newUserID()

	assert.Equal(t, RatingSummary{Quantity: 0, Average: 4.5}, env.summary(t, tour.ID()))

	d1 := env.review(t, a1, tour.ID(), 5)
	assert.Equal(t, RatingSummary{Quantity: 1, Average: 5}, env.summary(t, tour.ID()))

	d2 := env.review(t, a2, tour.ID(), 3)
	assert.Equal(t, RatingSummary{Quantity: 2, Average: 4}, env.summary(t, tour.ID()))

	require.NoError(t, env.Reviews.Delete(ctx, author(a1), d1.ID()))
	assert.Equal(t, RatingSummary{Quantity: 1, Average: 3}, env.summary(t, tour.ID()))

	require.NoError(t, env.Reviews.Delete(ctx, author(a2), d2.ID()))
	assert.Equal(t, RatingSummary{Quantity: 0, Average: domain.DefaultRatingAverage}, env.summary(t, tour.ID()))
}

func TestRating_UpdateRecomputes(t *testing.T) {
	env := newTestEnv(t)
	tour := env.createTour(t, "The Sea Explorer", 497)
	a1 := newUserID()
	r := env.review(t, a1, tour.ID(), 2)
	env.review(t, newUserID(), tour.ID(), 5)

	_, err := env.Reviews.Update(context.Background(), author(a1), r.ID(), &ReviewInput{Rating: ptr(4.0)})
	require.NoError(t, err)
	assert.Equal(t, RatingSummary{Quantity: 2, Average: 4.5}, env.summary(t, tour.ID()))
}

func TestRating_AverageRoundedToOneDecimal(t *testing.T) {
	env := newTestEnv(t)
	tour := env.createTour(t, "The Snow Adventurer", 997)
	for _, r := range []float64{5, 5, 4} {
		env.review(t, newUserID(), tour.ID(), r)
	}
	assert.Equal(t, RatingSummary{Quantity: 3, Average: 4.7}, env.summary(t, tour.ID()))
}

func TestRating_RecomputeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.createTour(t, "The City Wanderer", 1197)
	env.review(t, newUserID(), tour.ID(), 4)
	env.review(t, newUserID(), tour.ID(), 1)

	first, err := env.Rating.Recompute(ctx, tour.ID())
	require.NoError(t, err)
	before := env.summary(t, tour.ID())

	second, err := env.Rating.Recompute(ctx, tour.ID())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, env.summary(t, tour.ID()))
	assert.Equal(t, RatingSummary{Quantity: 2, Average: 2.5}, second)
}

func TestRating_DuplicateReviewRejected(t *testing.T) {
	env := newTestEnv(t)
	tour := env.createTour(t, "The Park Camper", 1497)
	a := newUserID()
	env.review(t, a, tour.ID(), 5)

	_, err := env.Reviews.Create(context.Background(), a, tour.ID(), &ReviewInput{Review: ptr("Again"), Rating: ptr(1.0)})
	require.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	assert.Equal(t, RatingSummary{Quantity: 1, Average: 5}, env.summary(t, tour.ID()))
}

func TestRating_ConcurrentReviewsConverge(t *testing.T) {
	env := newTestEnv(t)
	tour := env.createTour(t, "The Sports Lover", 2997)

	const n = 25
	var wg sync.WaitGroup
	var total float64
	for i := 0; i < n; i++ {
		rating := float64(i%5 + 1)
		total += rating
		wg.Add(1)
		go func(r float64) {
			defer wg.Done()
			_, err := env.Reviews.Create(context.Background(), newUserID(), tour.ID(), &ReviewInput{Review: ptr("ok"), Rating: ptr(r)})
			assert.NoError(t, err)
		}(rating)
	}
	wg.Wait()

	assert.Equal(t, RatingSummary{Quantity: n, Average: domain.RoundRating(total / n)}, env.summary(t, tour.ID()))
}

func TestRating_MissingTourIsAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	before := testutil.ToFloat64(ratingRecomputes.WithLabelValues(outcomeTourMissing))

	sum, err := env.Rating.Recompute(context.Background(), newUserID())
	require.NoError(t, err)
	assert.Equal(t, RatingSummary{Quantity: 0, Average: 4.5}, sum)
	assert.Equal(t, before+1, testutil.ToFloat64(ratingRecomputes.WithLabelValues(outcomeTourMissing)))
}

func TestRating_ReviewOfDeletedTourStillWritten(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.createTour(t, "The Northern Lights", 1497)
	a := newUserID()
	r := env.review(t, a, tour.ID(), 3)

	require.NoError(t, env.Tours.Delete(ctx, tour.ID()))

	require.NoError(t, env.Reviews.Delete(ctx, author(a), r.ID()))
	_, err := env.Reviews.Get(ctx, r.ID(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRating_MovedReviewRecomputesBothTours(t *testing.T) {
	env := newTestEnv(t)
	from := env.createTour(t, "The Wine Taster", 1997)
	to := env.createTour(t, "The Star Gazer", 2997)
	r := env.review(t, newUserID(), from.ID(), 2)

	_, err := env.Reviews.repo.Update(context.Background(), r.ID(), docstore.Document{domain.ReviewTour: to.ID()})
	require.NoError(t, err)

	assert.Equal(t, RatingSummary{Quantity: 0, Average: 4.5}, env.summary(t, from.ID()))
	assert.Equal(t, RatingSummary{Quantity: 1, Average: 2}, env.summary(t, to.ID()))
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis unavailable")
}

func TestRating_HookFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Locker = failingLocker{} })
	tour := env.createTour(t, "The Forest Runner", 397)

	r, err := env.Reviews.Create(context.Background(), newUserID(), tour.ID(), &ReviewInput{Review: ptr("Nice"), Rating: ptr(1.0)})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID())

	assert.Equal(t, RatingSummary{Quantity: 0, Average: 4.5}, env.summary(t, tour.ID()))
}

func TestRating_PublishesEvents(t *testing.T) {
	pub := new(mockPublisher)
	env := newTestEnv(t, func(d *Deps) { d.Events = pub })
	tour := env.createTour(t, "The Desert Voyager", 597)
	a := newUserID()

	pub.On("RatingUpdated", mock.Anything, event.RatingUpdated{TourID: tour.ID(), RatingQuantity: 1, RatingAverage: 4}).
		Return(errors.New("broker down")).Once()
	pub.On("ReviewWritten", mock.Anything, mock.MatchedBy(func(e event.ReviewWritten) bool {
		return e.TourID == tour.ID() && e.UserID == a && e.Op == string(docstore.OpInsert)
	})).Return(nil).Once()

	env.review(t, a, tour.ID(), 4)

	pub.AssertExpectations(t)
	assert.Equal(t, RatingSummary{Quantity: 1, Average: 4}, env.summary(t, tour.ID()))
}

func TestAffectedTours(t *testing.T) {
	tests := []struct {
		name string
		ev   docstore.WriteEvent
		want []string
	}{
		{"insert", docstore.WriteEvent{After: docstore.Document{"tour": "a"}}, []string{"a"}},
		{"delete", docstore.WriteEvent{Before: docstore.Document{"tour": "a"}}, []string{"a"}},
		{"update same tour", docstore.WriteEvent{Before: docstore.Document{"tour": "a"}, After: docstore.Document{"tour": "a"}}, []string{"a"}},
		{"moved", docstore.WriteEvent{Before: docstore.Document{"tour": "a"}, After: docstore.Document{"tour": "b"}}, []string{"a", "b"}},
		{"no tour", docstore.WriteEvent{After: docstore.Document{}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, affectedTours(tt.ev))
		})
	}
}
