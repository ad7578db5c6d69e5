package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/MinhajJamraiz/natours/internal/auth"
	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/email"
	"github.com/MinhajJamraiz/natours/internal/event"
	"github.com/MinhajJamraiz/natours/internal/repository"
	"github.com/MinhajJamraiz/natours/pkg/docstore"
	apperrors "github.com/MinhajJamraiz/natours/pkg/errors"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// SignupInput holds the parameters for creating an account.
type SignupInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// LoginInput holds the credentials of a login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdatePasswordInput changes the caller's password.
type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// ForgotPasswordInput names the account whose password was forgotten.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordInput sets a new password through a reset token.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdateMeInput changes the caller's profile.
type UpdateMeInput struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Photo *string `json:"photo,omitempty"`
}

// UpdateUserInput is what an admin may change on a user.
type UpdateUserInput struct {
	Name *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Role *string `json:"role,omitempty" validate:"omitempty,oneof=user guide lead-guide admin"`
}

// Session is an issued token with the user it belongs to.
type Session struct {
	Token string
	User  docstore.Document
}

// UserConfig tunes the user service.
type UserConfig struct {
	BcryptCost int
	// BaseURL is the public URL used in emails.
	BaseURL string
	// ResetTokenTTL bounds the life of a password reset token. Zero means
	// ten minutes.
	ResetTokenTTL time.Duration
}

// UserService implements signup, login, token checks and account
// management.
type UserService struct {
	repo    *repository.Repository
	tokens  *auth.TokenManager
	mailer  email.Sender
	events  event.Publisher
	builder *query.Builder
	cfg     UserConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService creates a user service.
func NewUserService(repo *repository.Repository, tokens *auth.TokenManager, mailer email.Sender, events event.Publisher, builder *query.Builder, cfg UserConfig, logger *slog.Logger) *UserService {
	if events == nil {
		events = event.Nop{}
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 10 * time.Minute
	}
	return &UserService{
		repo:    repo,
		tokens:  tokens,
		mailer:  mailer,
		events:  events,
		builder: builder.WithFields(domain.UserFields).Hiding(domain.PrivateUserFields...),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// PublicUser strips the fields a user document never shows.
func PublicUser(doc docstore.Document) docstore.Document {
	if doc == nil {
		return nil
	}
	return docstore.Project(doc, domain.PublicUser)
}

// Signup creates a user account with the user role and logs it in. The
// welcome email is best effort.
func (s *UserService) Signup(ctx context.Context, in *SignupInput) (*Session, error) {
	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, docstore.Document{
		"name":              strings.TrimSpace(in.Name),
		domain.UserEmail:    strings.ToLower(strings.TrimSpace(in.Email)),
		"photo":             domain.DefaultUserPhoto,
		domain.UserRole:     domain.RoleUser,
		domain.UserPassword: hash,
		domain.UserActive:   true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", created.ID()))

	msg := email.Welcome(created.String(domain.UserEmail), created.String("name"), s.cfg.BaseURL+"/me")
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to send welcome email",
			slog.String("user_id", created.ID()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.events.UserSignedUp(ctx, event.UserSignedUp{UserID: created.ID(), Email: created.String(domain.UserEmail)}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish signup", slog.String("error", err.Error()))
	}

	return s.session(created)
}

// Login checks credentials and issues a token.
func (s *UserService) Login(ctx context.Context, in *LoginInput) (*Session, error) {
	doc, ok, err := s.repo.FindOne(ctx, docstore.Filter{
		docstore.Eq(domain.UserEmail, strings.ToLower(strings.TrimSpace(in.Email))),
		docstore.Eq(domain.UserActive, true),
	})
	if err != nil {
		return nil, err
	}
	if !ok || !auth.CheckPassword(doc.String(domain.UserPassword), in.Password) {
		return nil, apperrors.Unauthorized("incorrect email or password")
	}
	return s.session(doc)
}

// Authenticate resolves a token to its principal. Tokens of deleted users
// and tokens issued before the last password change are rejected.
func (s *UserService) Authenticate(ctx context.Context, token string) (*middleware.Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token, please log in again")
	}

	doc, err := s.repo.Get(ctx, claims.UserID())
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if doc == nil || doc[domain.UserActive] != true {
		return nil, apperrors.Unauthorized("the user belonging to this token no longer exists")
	}
	if changedAfter(doc, claims.IssuedAtTime()) {
		return nil, apperrors.Unauthorized("user recently changed password, please log in again")
	}

	return &middleware.Principal{
		UserID: doc.ID(),
		Email:  doc.String(domain.UserEmail),
		Role:   doc.String(domain.UserRole),
	}, nil
}

// changedAfter reports whether the password changed after iat. Token times
// have second precision.
func changedAfter(doc docstore.Document, iat time.Time) bool {
	raw := doc.String(domain.UserPasswordChangedAt)
	if raw == "" {
		return false
	}
	changed, err := docstore.ParseTime(raw)
	if err != nil {
		return false
	}
	return changed.Unix() > iat.Unix()
}

// Me returns the caller's public profile.
func (s *UserService) Me(ctx context.Context, userID string) (docstore.Document, error) {
	doc, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return PublicUser(doc), nil
}

// UpdatePassword replaces the caller's password after checking the current
// one, and issues a fresh token. Older tokens stop working.
func (s *UserService) UpdatePassword(ctx context.Context, userID string, in *UpdatePasswordInput) (*Session, error) {
	doc, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(doc.String(domain.UserPassword), in.PasswordCurrent) {
		return nil, apperrors.Unauthorized("your current password is wrong")
	}
	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	// Back-dated so a token issued in the same second stays valid.
	changedAt := s.now().Add(-time.Second)
	updated, err := s.repo.Update(ctx, userID, docstore.Document{
		domain.UserPassword:          hash,
		domain.UserPasswordChangedAt: docstore.FormatTime(changedAt),
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))
	return s.session(updated)
}

// ForgotPassword emails a single-use reset link to the owner of in.Email.
// Only the digest of the token is stored. If the email cannot be sent the
// token is withdrawn again.
func (s *UserService) ForgotPassword(ctx context.Context, in *ForgotPasswordInput) error {
	doc, err := s.ByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return err
	}

	token, digest, err := auth.NewResetToken()
	if err != nil {
		return apperrors.Internal(err)
	}
	expires := s.now().Add(s.cfg.ResetTokenTTL)
	if _, err := s.repo.Update(ctx, doc.ID(), docstore.Document{
		domain.UserPasswordResetToken:   digest,
		domain.UserPasswordResetExpires: docstore.FormatTime(expires),
	}); err != nil {
		return err
	}

	link := s.cfg.BaseURL + "/api/v1/users/resetPassword/" + token
	msg := email.PasswordReset(doc.String(domain.UserEmail), doc.String("name"), link, s.cfg.ResetTokenTTL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", doc.ID()),
			slog.String("error", err.Error()),
		)
		if _, clearErr := s.repo.Update(ctx, doc.ID(), clearResetToken()); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to withdraw password reset token",
				slog.String("user_id", doc.ID()),
				slog.String("error", clearErr.Error()),
			)
		}
		return apperrors.InternalMessage("there was an error sending the email, try again later", err)
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", doc.ID()))
	return nil
}

// ResetPassword replaces the password of the user holding an unexpired reset
// token, consumes the token and logs the user in.
func (s *UserService) ResetPassword(ctx context.Context, token string, in *ResetPasswordInput) (*Session, error) {
	invalid := apperrors.InvalidInput("token is invalid or has expired")
	if token == "" {
		return nil, invalid
	}
	doc, ok, err := s.repo.FindOne(ctx, docstore.Filter{
		docstore.Eq(domain.UserPasswordResetToken, auth.HashResetToken(token)),
		docstore.Eq(domain.UserActive, true),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalid
	}
	expires, err := docstore.ParseTime(doc.String(domain.UserPasswordResetExpires))
	if err != nil || !s.now().Before(expires) {
		return nil, invalid
	}

	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	patch := clearResetToken()
	patch[domain.UserPassword] = hash
	patch[domain.UserPasswordChangedAt] = docstore.FormatTime(s.now().Add(-time.Second))
	updated, err := s.repo.Update(ctx, doc.ID(), patch)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", doc.ID()))
	return s.session(updated)
}

func clearResetToken() docstore.Document {
	return docstore.Document{
		domain.UserPasswordResetToken:   "",
		domain.UserPasswordResetExpires: "",
	}
}

// UpdateMe changes the caller's name, email or photo.
func (s *UserService) UpdateMe(ctx context.Context, userID string, in *UpdateMeInput) (docstore.Document, error) {
	if in.Email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &lowered
	}
	patch, err := docstore.Normalize(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	return PublicUser(updated), nil
}

// DeleteMe deactivates the caller's account.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	if _, err := s.repo.Update(ctx, userID, docstore.Document{domain.UserActive: false}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deactivated", slog.String("user_id", userID))
	return nil
}

// List runs a client query over active users.
func (s *UserService) List(ctx context.Context, desc url.Values) (query.Result, error) {
	res, err := s.builder.Run(ctx, desc, s.repo.Find(docstore.Filter{docstore.Eq(domain.UserActive, true)}))
	if err != nil {
		return query.Result{}, fmt.Errorf("list users: %w", err)
	}
	for i, d := range res.Data {
		res.Data[i] = PublicUser(d)
	}
	return res, nil
}

// Get returns a user's public profile.
func (s *UserService) Get(ctx context.Context, id string) (docstore.Document, error) {
	return s.Me(ctx, id)
}

// Update lets an admin rename a user or change their role.
func (s *UserService) Update(ctx context.Context, id string, in *UpdateUserInput) (docstore.Document, error) {
	patch, err := docstore.Normalize(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return PublicUser(updated), nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	_, err := s.repo.Delete(ctx, id)
	return err
}

// ByEmail returns the active user with the given email.
func (s *UserService) ByEmail(ctx context.Context, addr string) (docstore.Document, error) {
	doc, ok, err := s.repo.FindOne(ctx, docstore.Filter{
		docstore.Eq(domain.UserEmail, strings.ToLower(addr)),
		docstore.Eq(domain.UserActive, true),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound("user", addr)
	}
	return doc, nil
}

// TokenExpiry is the lifetime of issued tokens.
func (s *UserService) TokenExpiry() time.Duration { return s.tokens.Expiry() }

func (s *UserService) session(doc docstore.Document) (*Session, error) {
	token, err := s.tokens.Issue(doc.ID())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &Session{Token: token, User: PublicUser(doc)}, nil
}
