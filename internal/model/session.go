package model

import "time"

// Session is a bearer-token session owned by a single user.
//
// Sessions are never deleted to log someone out: Expires is moved into the
// past instead ("soft-expire"), so the row stays around for auditing until
// its user is purged.
type Session struct {
	ID         int64     `json:"id"`
	Token      string    `json:"token"`
	UserID     int64     `json:"userId"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"lastAccess"`
	Expires    time.Time `json:"expires"`
}

// IsActive reports whether the session is still valid at the given instant.
// A session whose expiry equals now is already inactive.
func (s *Session) IsActive(now time.Time) bool {
	return s.Expires.After(now)
}
