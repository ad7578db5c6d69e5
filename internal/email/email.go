package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Message is a plain-text transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers messages through one transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("email: message has no recipient")

// Welcome builds the signup greeting for the named user.
func Welcome(to, name, url string) Message {
	first := strings.Fields(name)
	greeting := name
	if len(first) > 0 {
		greeting = first[0]
	}
	return Message{
		To:      to,
		Subject: "Welcome to the Natours Application",
		Text: fmt.Sprintf("Hi %s,\n\nWelcome to Natours, we're glad to have you.\n"+
			"Upload a photo and complete your profile here: %s\n", greeting, url),
	}
}

// PasswordReset builds the email carrying a password reset link.
func PasswordReset(to, name, url string, ttl time.Duration) Message {
	greeting := name
	if first := strings.Fields(name); len(first) > 0 {
		greeting = first[0]
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your password reset token (valid for %s)", ttl),
		Text: fmt.Sprintf("Hi %s,\n\nForgot your password? Submit a PATCH request with your new password "+
			"and passwordConfirm to: %s\n\nIf you didn't forget your password, please ignore this email.\n", greeting, url),
	}
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP host is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

// Addr returns host:port.
func (c SMTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
	logger   *slog.Logger
}

// NewSMTPSender creates an SMTP sender using net/smtp.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail, logger: logger}
}

// Name returns the name of this sender.
func (s *SMTPSender) Name() string { return "smtp" }

// Send formats msg as RFC 5322 and hands it to the relay.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	body := s.format(msg)
	if err := s.sendMail(s.cfg.Addr(), auth, s.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	s.logger.InfoContext(ctx, "email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

func (s *SMTPSender) format(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: Natours Family <" + s.cfg.From + ">\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender for environments without SMTP.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string { return "log" }

// Send logs the message envelope.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.logger.InfoContext(ctx, "log sender: email not delivered",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// BreakerConfig tunes the circuit breaker around a Sender.
type BreakerConfig struct {
	Timeout      time.Duration
	Interval     time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig returns the settings used by the server.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Timeout:      30 * time.Second,
		Interval:     60 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// ErrCircuitOpen is returned while the breaker rejects sends.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerSender stops calling a failing transport until it recovers.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSender wraps next with a circuit breaker.
func NewBreakerSender(next Sender, cfg BreakerConfig, logger *slog.Logger) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        "email-" + next.Name(),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoRecipient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &BreakerSender{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Name returns the wrapped sender's name.
func (s *BreakerSender) Name() string { return s.next.Name() }

// Send delivers through the wrapped sender unless the breaker is open.
func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Send(ctx, msg)
	})
	return err
}

// State returns the breaker state.
func (s *BreakerSender) State() gobreaker.State { return s.breaker.State() }
