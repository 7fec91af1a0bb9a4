package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserProfile is the application row for an authenticated identity.
type UserProfile struct {
	UserID         string    `json:"user_id" validate:"required"`
	Email          string    `json:"email" validate:"omitempty,email"`
	FullName       string    `json:"full_name"`
	UserHandle     string    `json:"user_handle" validate:"required"`
	IsEmailPrivate bool      `json:"is_email_private"`
	IsNamePrivate  bool      `json:"is_name_private"`
	CreatedAt      time.Time `json:"created_at"`
}

// DisplayName prefers the full name and falls back to the handle.
func (p *UserProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return "@" + p.UserHandle
}

// Balance is the coin holding of a user as last reported by the server.
type Balance struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// PrivacySettings is the writable subset of the profile.
type PrivacySettings struct {
	IsEmailPrivate bool `json:"is_email_private"`
	IsNamePrivate  bool `json:"is_name_private"`
}

// SignUpForm is the input of account creation.
type SignUpForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,max=100"`
	UserHandle      string `json:"user_handle" validate:"required,handle"`
	IsEmailPrivate  bool   `json:"is_email_private"`
	IsNamePrivate   bool   `json:"is_name_private"`
}
