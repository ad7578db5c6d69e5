package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWelcome_UsesFirstName(t *testing.T) {
	msg := Welcome("jonas@example.com", "Jonas Schmedtmann", "http://localhost/me")

	assert.Equal(t, "jonas@example.com", msg.To)
	assert.Equal(t, "Welcome to the Natours Application", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Text, "Hi Jonas,"))
	assert.Contains(t, msg.Text, "http://localhost/me")
}

func TestPasswordReset_CarriesLink(t *testing.T) {
	msg := PasswordReset("ann@example.com", "Ann Lee", "http://localhost/api/v1/users/resetPassword/abc", 10*time.Minute)

	assert.Equal(t, "ann@example.com", msg.To)
	assert.Equal(t, "Your password reset token (valid for 10m0s)", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Text, "Hi Ann,"))
	assert.Contains(t, msg.Text, "http://localhost/api/v1/users/resetPassword/abc\n")
}

func TestSMTPSender_Send(t *testing.T) {
	cfg := SMTPConfig{Host: "smtp.test", Port: 2525, Username: "u", Password: "p", From: "hello@natours.io"}
	s := NewSMTPSender(cfg, discard())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	err := s.Send(context.Background(), Message{To: "a@b.c", Subject: "Hi", Text: "line1\nline2"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.test:2525", gotAddr)
	assert.Equal(t, "hello@natours.io", gotFrom)
	assert.Equal(t, []string{"a@b.c"}, gotTo)
	body := string(gotBody)
	assert.Contains(t, body, "Subject: Hi\r\n")
	assert.Contains(t, body, "To: a@b.c\r\n")
	assert.True(t, strings.HasSuffix(body, "line1\r\nline2"))
}

func TestSMTPSender_Errors(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.test", Port: 25}, discard())
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)

	err := s.Send(context.Background(), Message{To: "a@b.c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
}

func TestSMTPConfig_Enabled(t *testing.T) {
	assert.False(t, SMTPConfig{}.Enabled())
	assert.True(t, SMTPConfig{Host: "localhost"}.Enabled())
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(discard())
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@b.c"}))
	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)
}

func TestBreakerSender_OpensAfterFailures(t *testing.T) {
	next := new(mockSender)
	next.On("Send", mock.Anything, mock.Anything).Return(errors.New("relay down"))

	cfg := BreakerConfig{MinRequests: 3, FailureRatio: 0.5}
	s := NewBreakerSender(next, cfg, discard())

	for i := 0; i < 3; i++ {
		assert.Error(t, s.Send(context.Background(), Message{To: "a@b.c"}))
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	err := s.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	next.AssertNumberOfCalls(t, "Send", 3)
}

func TestBreakerSender_MissingRecipientDoesNotTrip(t *testing.T) {
	next := new(mockSender)
	next.On("Send", mock.Anything, mock.Anything).Return(ErrNoRecipient)

	s := NewBreakerSender(next, BreakerConfig{MinRequests: 1, FailureRatio: 0.1}, discard())
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerSender_PassesThrough(t *testing.T) {
	next := new(mockSender)
	msg := Message{To: "a@b.c", Subject: "s"}
	next.On("Send", mock.Anything, msg).Return(nil).Once()

	s := NewBreakerSender(next, DefaultBreakerConfig(), discard())
	require.NoError(t, s.Send(context.Background(), msg))
	assert.Equal(t, "mock", s.Name())
	next.AssertExpectations(t)
}
