// Package service implements the authentication core: session lifecycle,
// OAuth identity resolution and the Manager that composes them.
//
// LAYERING:
//
//	handler (HTTP) → service.Manager (auth rules) → repository.Store (rows)
//	                                             ↘ auth.PasswordPolicy
//	                                             ↘ oauth.Registry
//
// The service layer owns the mapping between model types and storage rows;
// nothing below it knows what a User is.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/repository"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance is shared by the package.
var validate = validator.New()

// validateEmail checks an already normalized address.
func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return apperror.WithCode(
			apperror.ValidationFailed("email", fmt.Sprintf("%q is not a valid email address", email)),
			apperror.EmailInvalid,
		)
	}
	return nil
}

// userColumns returns the persisted columns of u, without the id.
func userColumns(u *model.User) repository.Row {
	return repository.Row{
		"email":         u.Email,
		"created":       u.Created.Unix(),
		"last_login":    u.LastLogin.Unix(),
		"active":        u.Active,
		"password_hash": optString(u.PasswordHash),
		"oauth_id":      optString(u.OAuthID),
		"oauth_service": optString(u.OAuthService),
	}
}

func userFromRow(row repository.Row) (*model.User, error) {
	id, err := int64Col(row, "id")
	if err != nil {
		return nil, err
	}
	email, err := stringCol(row, "email")
	if err != nil {
		return nil, err
	}
	created, err := int64Col(row, "created")
	if err != nil {
		return nil, err
	}
	lastLogin, err := int64Col(row, "last_login")
	if err != nil {
		return nil, err
	}
	active, err := boolCol(row, "active")
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:        id,
		Email:     email,
		Created:   time.Unix(created, 0),
		LastLogin: time.Unix(lastLogin, 0),
		Active:    active,
	}
	if u.PasswordHash, err = optStringCol(row, "password_hash"); err != nil {
		return nil, err
	}
	if u.OAuthID, err = optStringCol(row, "oauth_id"); err != nil {
		return nil, err
	}
	if u.OAuthService, err = optStringCol(row, "oauth_service"); err != nil {
		return nil, err
	}
	return u, nil
}

func sessionColumns(s *model.Session) repository.Row {
	return repository.Row{
		"token":       s.Token,
		"user_id":     s.UserID,
		"created":     s.Created.Unix(),
		"last_access": s.LastAccess.Unix(),
		"expires":     s.Expires.Unix(),
	}
}

func sessionFromRow(row repository.Row) (*model.Session, error) {
	var (
		s   model.Session
		err error
		ts  [3]int64
	)
	if s.ID, err = int64Col(row, "id"); err != nil {
		return nil, err
	}
	if s.Token, err = stringCol(row, "token"); err != nil {
		return nil, err
	}
	if s.UserID, err = int64Col(row, "user_id"); err != nil {
		return nil, err
	}
	for i, col := range []string{"created", "last_access", "expires"} {
		if ts[i], err = int64Col(row, col); err != nil {
			return nil, err
		}
	}
	s.Created = time.Unix(ts[0], 0)
	s.LastAccess = time.Unix(ts[1], 0)
	s.Expires = time.Unix(ts[2], 0)
	return &s, nil
}

// getUser loads one user matching where. It returns (nil, nil) when no row
// matches.
func getUser(ctx context.Context, q repository.Querier, where ...repository.Cond) (*model.User, error) {
	row, err := q.GetOne(ctx, repository.TableUsers, where...)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return userFromRow(row)
}

// ---- column decoding ----
//
// Drivers disagree on Go types: SQLite hands back BOOLEAN columns as int64
// while Postgres returns bool. These helpers accept both.

func int64Col(row repository.Row, col string) (int64, error) {
	switch v := row[col].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("service: column %s: unexpected type %T", col, v)
	}
}

func stringCol(row repository.Row, col string) (string, error) {
	s, ok := row[col].(string)
	if !ok {
		return "", fmt.Errorf("service: column %s: unexpected type %T", col, row[col])
	}
	return s, nil
}

func optStringCol(row repository.Row, col string) (*string, error) {
	if row[col] == nil {
		return nil, nil
	}
	s, err := stringCol(row, col)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func boolCol(row repository.Row, col string) (bool, error) {
	switch v := row[col].(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("service: column %s: unexpected type %T", col, v)
	}
}

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
