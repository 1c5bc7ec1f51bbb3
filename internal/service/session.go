package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/auth"
	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/repository"
)

// DefaultSessionDaysValid is the validity window applied on issue and on every touch.
const DefaultSessionDaysValid = 30

// ErrTokenCollision is returned by Issue when the generated token already
// exists. The write was rejected by the database, so the caller can retry
// with a fresh transaction.
var ErrTokenCollision = errors.New("service: session token collision")

// SessionLifecycle issues, renews and expires session rows.
//
// It works against a repository.Querier so the caller decides whether a
// call runs on its own or inside a larger transaction.
//
// EXPIRY IS A TIMESTAMP, NOT A DELETE:
// Logging out moves "expires" one second into the past. The row stays, so
// the user's session history survives until the user is purged, and every
// lookup filters on expires > now so a dead token never resolves.
type SessionLifecycle struct {
	validity time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewSessionLifecycle creates a SessionLifecycle whose sessions stay valid
// for validityDays after issue or last touch. A non-positive value falls
// back to DefaultSessionDaysValid; a nil clock uses time.Now.
func NewSessionLifecycle(validityDays int, now func() time.Time) *SessionLifecycle {
	if validityDays <= 0 {
		validityDays = DefaultSessionDaysValid
	}
	if now == nil {
		now = time.Now
	}
	return &SessionLifecycle{
		validity: time.Duration(validityDays) * 24 * time.Hour,
		now:      now,
		newToken: auth.NewSessionToken,
	}
}

// Validity returns the session validity window.
func (l *SessionLifecycle) Validity() time.Duration {
	return l.validity
}

// clock returns the current time at storage precision (whole seconds), so
// a returned Session equals what a later lookup reads back.
func (l *SessionLifecycle) clock() time.Time {
	return time.Unix(l.now().Unix(), 0)
}

// Issue creates and persists a new session for userID. Tokens are never
// reused; a duplicate token surfaces as ErrTokenCollision.
func (l *SessionLifecycle) Issue(ctx context.Context, q repository.Querier, userID int64) (*model.Session, error) {
	token, err := l.newToken()
	if err != nil {
		return nil, err
	}

	now := l.clock()
	s := &model.Session{
		Token:      token,
		UserID:     userID,
		Created:    now,
		LastAccess: now,
		Expires:    now.Add(l.validity),
	}

	id, err := q.Insert(ctx, repository.TableSessions, sessionColumns(s))
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("service: issuing session for user %d: %w", userID, ErrTokenCollision)
	}
	if err != nil {
		return nil, fmt.Errorf("service: issuing session for user %d: %w", userID, err)
	}
	s.ID = id
	return s, nil
}

// Touch renews s: lastAccess becomes now and expires becomes now plus the
// validity window. The result depends only on the current time, so
// repeated calls are idempotent.
//
// Only a row that is still active is renewed. A session expired after it
// was looked up (logout, password change, deactivation) stays expired and
// Touch reports apperror.ErrNotFound.
func (l *SessionLifecycle) Touch(ctx context.Context, q repository.Querier, s *model.Session) (*model.Session, error) {
	if s == nil || s.ID == 0 {
		return nil, errors.New("service: touching a session that was never persisted")
	}

	now := l.clock()
	renewed := *s
	renewed.LastAccess = now
	renewed.Expires = now.Add(l.validity)

	n, err := q.Update(ctx, repository.TableSessions,
		repository.Row{"last_access": now.Unix(), "expires": renewed.Expires.Unix()},
		repository.Eq("id", s.ID),
		repository.Gt("expires", now.Unix()))
	if err != nil {
		return nil, fmt.Errorf("service: touching session %d: %w", s.ID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("service: touching session %d: %w", s.ID, apperror.ErrNotFound)
	}
	return &renewed, nil
}

// IsActive reports whether s is still valid now.
func (l *SessionLifecycle) IsActive(s *model.Session) bool {
	return s != nil && s.IsActive(l.now())
}

// Expire soft-expires the session with token. It reports whether a session
// matched.
func (l *SessionLifecycle) Expire(ctx context.Context, q repository.Querier, token string) (bool, error) {
	n, err := q.Update(ctx, repository.TableSessions,
		repository.Row{"expires": l.clock().Add(-time.Second).Unix()},
		repository.Eq("token", token))
	if err != nil {
		return false, fmt.Errorf("service: expiring session: %w", err)
	}
	return n > 0, nil
}

// ExpireAll soft-expires every session of userID that is still active and
// returns how many were expired.
func (l *SessionLifecycle) ExpireAll(ctx context.Context, q repository.Querier, userID int64) (int64, error) {
	now := l.clock()
	n, err := q.Update(ctx, repository.TableSessions,
		repository.Row{"expires": now.Add(-time.Second).Unix()},
		repository.Eq("user_id", userID),
		repository.Gt("expires", now.Unix()))
	if err != nil {
		return 0, fmt.Errorf("service: expiring sessions of user %d: %w", userID, err)
	}
	return n, nil
}

// Lookup returns the active session with token. The expiry filter runs in
// the query, so an expired token is indistinguishable from an unknown one:
// both yield an error wrapping apperror.ErrNotFound.
func (l *SessionLifecycle) Lookup(ctx context.Context, q repository.Querier, token string) (*model.Session, error) {
	row, err := q.GetOne(ctx, repository.TableSessions,
		repository.Eq("token", token),
		repository.Gt("expires", l.clock().Unix()))
	if err != nil {
		return nil, fmt.Errorf("service: looking up session: %w", err)
	}
	return sessionFromRow(row)
}

// List returns every session row of userID, active or not, oldest first.
func (l *SessionLifecycle) List(ctx context.Context, q repository.Querier, userID int64) ([]*model.Session, error) {
	rows, err := q.GetMany(ctx, repository.TableSessions, repository.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("service: listing sessions of user %d: %w", userID, err)
	}
	out := make([]*model.Session, 0, len(rows))
	for _, row := range rows {
		s, err := sessionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
