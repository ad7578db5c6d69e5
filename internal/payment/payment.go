package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	StatusOpen     = "open"
	StatusComplete = "complete"
)

// ErrSessionNotFound is returned for an unknown checkout session id.
var ErrSessionNotFound = errors.New("payment: checkout session not found")

// ErrSessionCompleted is returned when a session is confirmed twice.
var ErrSessionCompleted = errors.New("payment: checkout session already completed")

// CheckoutInput holds the parameters of a single-item checkout.
type CheckoutInput struct {
	TourID        string
	TourName      string
	Summary       string
	CustomerEmail string
	Amount        int64 // minor units
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Session is a hosted checkout session.
type Session struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Status            string    `json:"status"`
	ClientReferenceID string    `json:"client_reference_id"`
	CustomerEmail     string    `json:"customer_email"`
	AmountTotal       int64     `json:"amount_total"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created"`
}

// Provider defines the interface for payment provider integrations.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "stripe").
	Name() string

	// CreateCheckoutSession opens a hosted checkout for input.
	CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*Session, error)

	// ConfirmSession marks a session paid and returns it. It is what a
	// provider webhook reports.
	ConfirmSession(ctx context.Context, sessionID string) (*Session, error)
}

// MockProvider keeps sessions in memory and completes them on confirmation.
type MockProvider struct {
	baseURL string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMockProvider creates a mock provider whose checkout URLs live under baseURL.
func NewMockProvider(baseURL string) *MockProvider {
	return &MockProvider{baseURL: baseURL, sessions: make(map[string]*Session)}
}

// Name returns the provider name.
func (p *MockProvider) Name() string { return "mock" }

// CreateCheckoutSession records an open session.
func (p *MockProvider) CreateCheckoutSession(ctx context.Context, input *CheckoutInput) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("payment: invalid amount %d", input.Amount)
	}

	id := "cs_mock_" + uuid.New().String()
	s := &Session{
		ID:                id,
		URL:               p.baseURL + "/pay/" + id,
		Status:            StatusOpen,
		ClientReferenceID: input.TourID,
		CustomerEmail:     input.CustomerEmail,
		AmountTotal:       input.Amount,
		Currency:          input.Currency,
		CreatedAt:         time.Now().UTC(),
	}

	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()

	out := *s
	return &out, nil
}

// ConfirmSession completes an open session exactly once.
func (p *MockProvider) ConfirmSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Status == StatusComplete {
		return nil, ErrSessionCompleted
	}
	s.Status = StatusComplete

	out := *s
	return &out, nil
}
