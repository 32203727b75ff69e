package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// UserStatus represents account status
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

const (
	// MaxLoginAttempts locks the account on the 5th consecutive failure
	MaxLoginAttempts = 5
	// LockoutDuration is how long a locked account stays locked
	LockoutDuration = 2 * time.Hour
)

// User represents a registered developer account.
// Exactly one of PasswordHash or OAuthID is set.
type User struct {
	ID                  string      `json:"id"`
	Email               string      `json:"email"`
	PasswordHash        null.String `json:"-"`
	OAuthID             null.String `json:"-"`
	OAuthProvider       null.String `json:"oauthProvider,omitempty"`
	Name                string      `json:"name"`
	Company             null.String `json:"company,omitempty"`
	EmailVerified       bool        `json:"emailVerified"`
	VerificationToken   null.String `json:"-"`
	VerificationExpires null.Time   `json:"-"`
	ResetToken          null.String `json:"-"`
	ResetExpires        null.Time   `json:"-"`
	LastLogin           null.Time   `json:"lastLogin,omitempty"`
	LoginAttempts       int         `json:"-"`
	LockedUntil         null.Time   `json:"-"`
	Status              UserStatus  `json:"status"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// IsLocked reports whether the account is currently locked out
func (u *User) IsLocked() bool {
	return u.LockedUntil.Valid && u.LockedUntil.Time.After(time.Now())
}

// RegisterInput represents registration input
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Company  string `json:"company,omitempty"`
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// OAuthSignInInput represents an OAuth sign-in
type OAuthSignInInput struct {
	Provider string `json:"provider" binding:"required"`
	OAuthID  string `json:"oauthId" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
}

// VerifyEmailInput carries the verification token
type VerifyEmailInput struct {
	Token string `json:"token" binding:"required"`
}

// ResetPasswordInput carries the reset token and the new password
type ResetPasswordInput struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// UpdateProfileInput represents profile update input
type UpdateProfileInput struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
}

// AuthResponse represents a successful login
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
