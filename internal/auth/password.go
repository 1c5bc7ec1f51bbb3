// Package auth handles password hashing, session tokens and request authentication.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness is a security feature: it makes brute-force attacks expensive.
//
// bcrypt automatically:
//   - Generates a random salt (so two users with the same password get different hashes)
//   - Embeds the salt in the output hash (no separate salt column needed)
//   - Controls the work factor via "cost" (higher = slower = harder to crack)
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (10 rounds → 2^10 = 1024 iterations)
//	 version
//
// REHASH-ON-VERIFY:
// Because the cost is embedded in every hash, we can tell when a stored hash
// was produced with weaker settings than today's. NeedsRehash reports that,
// and the login flow silently re-hashes the plaintext it just verified.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/authcore/internal/apperror"
)

// MaxPasswordBytes is bcrypt's input limit. bcrypt silently ignores
// everything after byte 72, so longer passwords are rejected outright.
const MaxPasswordBytes = 72

// DefaultMinStrength is the minimum strength score (0–4) a new password needs.
const DefaultMinStrength = 1

// StrengthScorer rates a password from 0 (trivial) to 4 (very strong).
//
// userInputs carries strings tied to the account (e.g. the email) so a scorer
// can penalise passwords derived from them.
type StrengthScorer interface {
	Score(password string, userInputs []string) int
}

// PasswordPolicy hashes and verifies passwords.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests: using a lower cost (e.g. 4) makes tests run much faster
// without compromising the logic being tested.
type PasswordPolicy struct {
	cost        int
	minStrength int
	scorer      StrengthScorer
}

// NewPasswordPolicy creates a PasswordPolicy.
//
// cost outside bcrypt's [MinCost, MaxCost] range falls back to bcrypt.DefaultCost.
// A nil scorer uses the zxcvbn scorer.
func NewPasswordPolicy(cost, minStrength int, scorer StrengthScorer) *PasswordPolicy {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if scorer == nil {
		scorer = ZxcvbnScorer{}
	}
	return &PasswordPolicy{
		cost:        cost,
		minStrength: minStrength,
		scorer:      scorer,
	}
}

// Cost returns the bcrypt cost used for new hashes.
func (p *PasswordPolicy) Cost() int {
	return p.cost
}

// MinStrength returns the minimum score Hash accepts.
func (p *PasswordPolicy) MinStrength() int {
	return p.minStrength
}

// WithMinStrength returns a copy of the policy with a different strength threshold.
func (p *PasswordPolicy) WithMinStrength(minStrength int) *PasswordPolicy {
	c := *p
	c.minStrength = minStrength
	return &c
}

// Hash validates and hashes a new password.
//
// Errors carry an apperror.Code:
//   - apperror.PasswordTooLong if the password exceeds 72 bytes
//   - apperror.PasswordTooWeak if the scorer rates it below the minimum
func (p *PasswordPolicy) Hash(password string, userInputs ...string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperror.WithCode(
			apperror.ValidationFailed("password", fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes)),
			apperror.PasswordTooLong,
		)
	}

	if score := p.scorer.Score(password, userInputs); score < p.minStrength {
		return "", apperror.WithCode(
			apperror.ValidationFailed("password", fmt.Sprintf("password is too weak (score %d, need %d)", score, p.minStrength)),
			apperror.PasswordTooWeak,
		)
	}

	return p.Rehash(password)
}

// Rehash hashes a password that has already been accepted once, skipping the
// strength gate. Used to upgrade hashes after a successful Verify.
func (p *PasswordPolicy) Rehash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperror.WithCode(
			apperror.ValidationFailed("password", fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes)),
			apperror.PasswordTooLong,
		)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// It never returns an error: an over-long password, a mismatch and a
// malformed hash all simply fail verification.
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword uses a constant-time comparison internally,
// so this function is safe against timing attacks.
func (p *PasswordPolicy) Verify(password, hash string) bool {
	if len(password) > MaxPasswordBytes || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced with weaker parameters than
// the policy's current ones (a lower cost, or not bcrypt at all).
func (p *PasswordPolicy) NeedsRehash(hash string) bool {
	if !isBcrypt(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < p.cost
}

func isBcrypt(hash string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(hash, prefix) {
			return true
		}
	}
	return false
}
