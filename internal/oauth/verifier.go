// Package oauth verifies assertions issued by third-party identity providers.
//
// A Verifier turns whatever the client got from a provider (an authorization
// code, an ID token, ...) into a verified Identity: the provider's stable user
// id plus the email address the provider vouches for. What happens with that
// identity (log in, create, link) is decided elsewhere.
//
// Verifiers are registered by name in a Registry; the name is the value stored
// in the user's oauth_service column, so it must never change once accounts
// have been linked with it.
package oauth

import (
	"context"
	"errors"
	"fmt"
)

// ErrVerificationFailed is matched (errors.Is) by every error a Verifier
// returns for an assertion it could not verify.
var ErrVerificationFailed = errors.New("oauth: verification failed")

// Identity is a provider-verified user identity.
type Identity struct {
	Provider       string // verifier name, e.g. "github"
	ProviderUserID string // stable user id at the provider
	Email          string
}

// Verifier checks a provider assertion.
type Verifier interface {
	// Name is the provider key, e.g. "github" or "google".
	Name() string
	// Verify returns the identity behind assertion, or an error matching
	// ErrVerificationFailed.
	Verify(ctx context.Context, assertion string) (Identity, error)
}

// VerificationError describes why an assertion was rejected.
type VerificationError struct {
	Provider string
	Reason   string
	Err      error // underlying cause, may be nil
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth: %s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("oauth: %s: %s", e.Provider, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}

func rejected(provider, reason string, err error) error {
	return &VerificationError{Provider: provider, Reason: reason, Err: err}
}
