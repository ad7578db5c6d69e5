package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MinhajJamraiz/natours/internal/auth"
	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/email"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/internal/payment"
	natstore "github.com/MinhajJamraiz/natours/internal/store"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/docstore/memory"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
)

const testSecret = "test-secret-that-is-long-enough-0123456789"

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func ptr[T any](v T) *T { return &v }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) RatingUpdated(ctx context.Context, e event.RatingUpdated) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) ReviewWritten(ctx context.Context, e event.ReviewWritten) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) BookingCreated(ctx context.Context, e event.BookingCreated) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) UserSignedUp(ctx context.Context, e event.UserSignedUp) error {
	return m.Called(ctx, e).Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Name() string { return "mock" }

func (m *mockMailer) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type testEnv struct {
	*Services
	store    *memory.Store
	tokens   *auth.TokenManager
	payments *payment.MockProvider
}

func newTestEnv(t *testing.T, configure ...func(*Deps)) *testEnv {
	t.Helper()
	s, err := natstore.NewMemory()
	require.NoError(t, err)

	env := &testEnv{
		store:    s,
		tokens:   auth.NewTokenManager(testSecret, time.Hour),
		payments: payment.NewMockProvider("http://natours.test"),
	}
	deps := Deps{
		Store:    s,
		Payments: env.payments,
		Tokens:   env.tokens,
		User:     UserConfig{BcryptCost: bcrypt.MinCost, BaseURL: "http://natours.test"},
		BaseURL:  "http://natours.test",
		Logger:   discard(),
	}
	for _, c := range configure {
		c(&deps)
	}
	env.Services = New(deps)
	return env
}

func tourInput(name string, price float64) *TourInput {
	return &TourInput{
		Name:         ptr(name),
		Duration:     ptr(7.0),
		MaxGroupSize: ptr(10.0),
		Difficulty:   ptr(domain.DifficultyEasy),
		Price:        ptr(price),
		Summary:      ptr("Breathtaking hike through the park"),
		ImageCover:   ptr("tour-cover.jpg"),
	}
}

func (e *testEnv) createTour(t *testing.T, name string, price float64) docstore.Document {
	t.Helper()
	doc, err := e.Tours.Create(context.Background(), tourInput(name, price))
	require.NoError(t, err)
	return doc
}

func (e *testEnv) review(t *testing.T, userID, tourID string, rating float64) docstore.Document {
	t.Helper()
	doc, err := e.Reviews.Create(context.Background(), userID, tourID, &ReviewInput{Review: ptr("Great tour"), Rating: ptr(rating)})
	require.NoError(t, err)
	return doc
}

func (e *testEnv) summary(t *testing.T, tourID string) RatingSummary {
	t.Helper()
	doc, err := e.store.Collection(domain.CollectionTours).FindByID(context.Background(), tourID)
	require.NoError(t, err)
	q, _ := doc.Float(domain.TourRatingQuantity)
	avg, _ := doc.Float(domain.TourRatingAverage)
	return RatingSummary{Quantity: int(q), Average: avg}
}

func author(id string) *middleware.Principal {
	return &middleware.Principal{UserID: id, Role: domain.RoleUser}
}

func newUserID() string { return uuid.NewString() }
