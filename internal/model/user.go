// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User represents an account that can authenticate.
//
// A user is either LOCAL (PasswordHash set) or FEDERATED (OAuthID and
// OAuthService set), or both once a local account has been linked to a
// provider. The pair (OAuthService, OAuthID) is always set or unset together.
//
// WHY int64 IDs?
// IDs are assigned by the database on first insert (AUTOINCREMENT / BIGSERIAL)
// and never change afterwards. A zero ID means "not persisted yet".
//
// WHY *string FOR OPTIONAL COLUMNS?
// The columns are NULL for accounts that don't use them. A nil pointer keeps
// "no password" distinct from "empty password hash".
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Created      time.Time `json:"created"`
	LastLogin    time.Time `json:"lastLogin"`
	Active       bool      `json:"active"`
	PasswordHash *string   `json:"-"`
	OAuthID      *string   `json:"-"`
	OAuthService *string   `json:"-"`

	// Session is the session attached during the current request, if any.
	// It is never persisted as part of the user row.
	Session *Session `json:"session,omitempty"`
}

// NewLocalUser builds an active, not-yet-persisted local account.
// The caller supplies an already hashed password.
func NewLocalUser(email, passwordHash string, now time.Time) *User {
	return &User{
		Email:        NormalizeEmail(email),
		Created:      now,
		LastLogin:    now,
		Active:       true,
		PasswordHash: &passwordHash,
	}
}

// NewSocialUser builds an active, not-yet-persisted federated account
// identified by (service, providerUserID).
func NewSocialUser(email, service, providerUserID string, now time.Time) *User {
	return &User{
		Email:        NormalizeEmail(email),
		Created:      now,
		LastLogin:    now,
		Active:       true,
		OAuthID:      &providerUserID,
		OAuthService: &service,
	}
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasOAuth reports whether a federated identity is linked to the user.
func (u *User) HasOAuth() bool {
	return u.OAuthID != nil && *u.OAuthID != ""
}

// MatchesOAuth reports whether the stored federated identity is exactly
// (service, providerUserID).
func (u *User) MatchesOAuth(service, providerUserID string) bool {
	return u.HasOAuth() &&
		u.OAuthService != nil &&
		*u.OAuthID == providerUserID &&
		*u.OAuthService == service
}

// LinkOAuth sets the federated identity pair on the user.
func (u *User) LinkOAuth(service, providerUserID string) {
	u.OAuthService = &service
	u.OAuthID = &providerUserID
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Emails are always stored in this form so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
