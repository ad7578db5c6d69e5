package domain

import (
	"context"
	"slices"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// Roles.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// User document fields.
const (
	UserEmail             = "email"
	UserPassword          = "password"
	UserPasswordChangedAt = "passwordChangedAt"
	UserActive            = "active"
	UserRole              = "role"

	UserPasswordResetToken   = "passwordResetToken"
	UserPasswordResetExpires = "passwordResetExpires"
)

const DefaultUserPhoto = "default.jpg"

// User is an account. Password holds the bcrypt hash and never leaves the
// service layer.
type User struct {
	ID                string `json:"_id,omitempty"`
	Name              string `json:"name" validate:"required,max=100"`
	Email             string `json:"email" validate:"required,email"`
	Photo             string `json:"photo,omitempty"`
	Role              string `json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password          string `json:"password,omitempty" validate:"required"`
	PasswordChangedAt string `json:"passwordChangedAt,omitempty"`
	Active            bool   `json:"active"`
	CreatedAt         string `json:"createdAt,omitempty"`

	// PasswordResetToken is the sha256 of the emailed reset token.
	PasswordResetToken   string `json:"passwordResetToken,omitempty"`
	PasswordResetExpires string `json:"passwordResetExpires,omitempty"`
}

// PrivateUserFields never leave the service layer and cannot be queried.
var PrivateUserFields = []string{UserPassword, UserActive, UserPasswordResetToken, UserPasswordResetExpires}

// PublicUser is the projection used whenever a user is shown.
var PublicUser = docstore.Projection{Exclude: append([]string{docstore.VersionField}, PrivateUserFields...)}

var UserFields = map[string]query.Kind{
	UserActive:              query.Bool,
	docstore.CreatedAtField: query.Time,
}

// Roles lists the valid roles.
func Roles() []string {
	return []string{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}
}

func IsValidRole(role string) bool {
	return slices.Contains(Roles(), role)
}

// ValidateUser checks a user document before it is stored.
func ValidateUser(ctx context.Context, doc docstore.Document) error {
	return structValidator[User]()(ctx, doc)
}
