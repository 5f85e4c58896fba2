package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleInvestor = "investor"
	RoleAdmin    = "admin"
)

// User is a platform account. PasswordHash never leaves the service layer.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
}
