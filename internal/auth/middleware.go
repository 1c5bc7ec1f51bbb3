package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/authcore/internal/model"
)

// Conventional carriers for the session token.
const (
	DefaultTokenHeader = "x-auth"
	DefaultTokenParam  = "t"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. Using a package-private type
// prevents collisions: only THIS package can create a key of type contextKey,
// so only this package can read or write the user stored in the context.
type contextKey string

const userKey contextKey = "user"

// TokenExtractor pulls the bearer token out of an inbound request.
//
// The header wins over the query parameter. A "Bearer " prefix on the header
// value is tolerated so standard HTTP clients work too.
type TokenExtractor struct {
	Header string
	Param  string
}

// NewTokenExtractor creates a TokenExtractor; empty names fall back to
// "x-auth" and "t".
func NewTokenExtractor(header, param string) TokenExtractor {
	if header == "" {
		header = DefaultTokenHeader
	}
	if param == "" {
		param = DefaultTokenParam
	}
	return TokenExtractor{Header: header, Param: param}
}

// Extract returns the token and whether one was present.
func (e TokenExtractor) Extract(r *http.Request) (string, bool) {
	if v := strings.TrimSpace(r.Header.Get(e.Header)); v != "" {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			v = strings.TrimSpace(v[7:])
		}
		if v != "" {
			return v, true
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get(e.Param)); v != "" {
		return v, true
	}
	return "", false
}

// SessionCheckFunc resolves a token to its user. It returns (nil, nil) when
// the token is not an active session of an active user, and a non-nil error
// only for faults (e.g. the database is unreachable).
type SessionCheckFunc func(ctx context.Context, token string) (*model.User, error)

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the token (header or query parameter), runs the session check
// (which also extends the session), and stores the user in the request
// context. Missing or invalid tokens get 401 Unauthorized; a failing check
// gets 500 so outages aren't reported as bad credentials.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler that wraps the original.
func RequireAuth(tokens TokenExtractor, check SessionCheckFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokens.Extract(r)
			if !ok {
				unauthorized(w)
				return
			}

			user, err := check(r.Context(), token)
			if err != nil {
				logger.Error("session check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error","message":"An internal error occurred"}`))
				return
			}
			if user == nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) if the request did not pass through RequireAuth.
// The returned user has its current Session attached.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// ContextWithUser returns a copy of ctx carrying u, as RequireAuth stores
// it for downstream handlers.
func ContextWithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"session-invalid","message":"valid authentication required"}`))
}
