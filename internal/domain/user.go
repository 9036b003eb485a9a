package domain

import (
	"strings"
	"time"
)

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleAdmin can see and manage every dataset.
	RoleAdmin Role = "admin"
	// RoleLabeler can upload datasets and label the ones they belong to.
	RoleLabeler Role = "labeler"
)

// User represents an authenticated user account in the system.
type User struct {
	Record
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	Role         Role       `json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Name returns the display name, falling back to the local part of the email.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
