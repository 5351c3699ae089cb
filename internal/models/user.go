package models

import (
	"strings"
	"time"
)

// User is a student (or teacher) account mirrored from the identity provider
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	JLPTLevel   string    `json:"jlpt_level,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, falling back to the local part of the email
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Identity is who the current request acts as, as vouched for by the identity provider
type Identity struct {
	UserID string
	Email  string
	Name   string
}
