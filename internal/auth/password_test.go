package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/authcore/internal/apperror"
)

// =========================================================================
// HELPERS
// =========================================================================

// fixedScorer returns the same score for every password and records the
// user inputs it was given.
type fixedScorer struct {
	score     int
	gotInputs []string
}

func (f *fixedScorer) Score(_ string, userInputs []string) int {
	f.gotInputs = userInputs
	return f.score
}

// newTestPasswordPolicy returns a PasswordPolicy with bcrypt cost 4.
// Cost 4 is the minimum allowed by the bcrypt library. This makes tests
// run in milliseconds instead of ~100ms each.
func newTestPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(bcrypt.MinCost, DefaultMinStrength, &fixedScorer{score: 4})
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	p := newTestPasswordPolicy()

	hash, err := p.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	p := newTestPasswordPolicy()

	hash1, _ := p.Hash("same-password")
	hash2, _ := p.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	p := newTestPasswordPolicy()

	_, err := p.Hash(strings.Repeat("a", 73))
	if !errors.Is(err, apperror.PasswordTooLong) {
		t.Fatalf("Hash() error = %v, want PasswordTooLong", err)
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Hash() error should also be a validation error, got %v", err)
	}
}

func TestHash_AcceptsPasswordExactly72Bytes(t *testing.T) {
	p := newTestPasswordPolicy()

	if _, err := p.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

func TestHash_RejectsWeakPassword(t *testing.T) {
	scorer := &fixedScorer{score: 0}
	p := NewPasswordPolicy(bcrypt.MinCost, 1, scorer)

	_, err := p.Hash("abc", "a@x.com")
	if !errors.Is(err, apperror.PasswordTooWeak) {
		t.Fatalf("Hash() error = %v, want PasswordTooWeak", err)
	}
	if len(scorer.gotInputs) != 1 || scorer.gotInputs[0] != "a@x.com" {
		t.Errorf("scorer user inputs = %v, want [a@x.com]", scorer.gotInputs)
	}
}

func TestHash_ThresholdIsInclusive(t *testing.T) {
	p := NewPasswordPolicy(bcrypt.MinCost, 2, &fixedScorer{score: 2})

	if _, err := p.Hash("whatever"); err != nil {
		t.Fatalf("score equal to the minimum should pass, got %v", err)
	}
}

func TestHash_LengthCheckedBeforeStrength(t *testing.T) {
	p := NewPasswordPolicy(bcrypt.MinCost, 4, &fixedScorer{score: 0})

	_, err := p.Hash(strings.Repeat("x", 100))
	if !errors.Is(err, apperror.PasswordTooLong) {
		t.Fatalf("Hash() error = %v, want PasswordTooLong", err)
	}
}

func TestWithMinStrength_DoesNotMutateOriginal(t *testing.T) {
	p := NewPasswordPolicy(bcrypt.MinCost, 1, &fixedScorer{score: 2})
	strict := p.WithMinStrength(3)

	if p.MinStrength() != 1 {
		t.Errorf("original MinStrength = %d, want 1", p.MinStrength())
	}
	if _, err := strict.Hash("pw"); !errors.Is(err, apperror.PasswordTooWeak) {
		t.Errorf("strict.Hash() error = %v, want PasswordTooWeak", err)
	}
	if _, err := p.Hash("pw"); err != nil {
		t.Errorf("p.Hash() error = %v, want nil", err)
	}
}

func TestNewPasswordPolicy_InvalidCostFallsBackToDefault(t *testing.T) {
	p := NewPasswordPolicy(99, 1, nil)
	if p.Cost() != bcrypt.DefaultCost {
		t.Errorf("Cost() = %d, want %d", p.Cost(), bcrypt.DefaultCost)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_CorrectPassword(t *testing.T) {
	p := newTestPasswordPolicy()

	hash, err := p.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !p.Verify("correct-horse-battery-staple", hash) {
		t.Error("Verify() should return true for a correct password")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	p := newTestPasswordPolicy()
	hash, _ := p.Hash("the-real-password")

	if p.Verify("the-wrong-password", hash) {
		t.Fatal("Verify() should return false for a wrong password")
	}
}

func TestVerify_OverlongPasswordIsRejectedNotTruncated(t *testing.T) {
	p := newTestPasswordPolicy()

	base := strings.Repeat("a", 72)
	hash, err := p.Hash(base)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// bcrypt alone would accept this (it ignores bytes past 72).
	if p.Verify(base+"extra", hash) {
		t.Fatal("Verify() should return false for passwords longer than 72 bytes")
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	p := newTestPasswordPolicy()

	if p.Verify("password", "not-a-valid-bcrypt-hash") {
		t.Fatal("Verify() should return false for a garbage hash")
	}
	if p.Verify("password", "") {
		t.Fatal("Verify() should return false for an empty hash")
	}
}

// =========================================================================
// NeedsRehash TESTS
// =========================================================================

func TestNeedsRehash(t *testing.T) {
	weak := NewPasswordPolicy(bcrypt.MinCost, 0, &fixedScorer{})
	strong := NewPasswordPolicy(bcrypt.MinCost+1, 0, &fixedScorer{})

	weakHash, err := weak.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	strongHash, err := strong.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	cases := []struct {
		name   string
		policy *PasswordPolicy
		hash   string
		want   bool
	}{
		{"same cost", weak, weakHash, false},
		{"lower cost than policy", strong, weakHash, true},
		{"higher cost than policy", weak, strongHash, false},
		{"not bcrypt", strong, "5f4dcc3b5aa765d61d8327deb882cf99", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.NeedsRehash(tc.hash); got != tc.want {
				t.Errorf("NeedsRehash() = %v, want %v", got, tc.want)
			}
		})
	}
}

// =========================================================================
// ROUND-TRIP TEST
// =========================================================================

func TestHashVerify_RoundTrip(t *testing.T) {
	p := newTestPasswordPolicy()

	cases := []struct {
		name     string
		password string
	}{
		{"simple alphanumeric", "hello123"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace", "  leading and trailing  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := p.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}
			if !p.Verify(tc.password, hash) {
				t.Errorf("Verify() failed for %q", tc.password)
			}
		})
	}
}

// =========================================================================
// zxcvbn SCORER
// =========================================================================

func TestZxcvbnScorer_CommonPasswordScoresZero(t *testing.T) {
	if got := (ZxcvbnScorer{}).Score("password", nil); got != 0 {
		t.Errorf("Score(password) = %d, want 0", got)
	}
}

func TestZxcvbnScorer_UserInputsLowerTheScore(t *testing.T) {
	s := ZxcvbnScorer{}
	pw := "zebediah.quarrington"

	without := s.Score(pw, nil)
	with := s.Score(pw, []string{"zebediah.quarrington@example.com", "zebediah.quarrington"})
	if with > without {
		t.Errorf("score with matching user input (%d) should not exceed score without (%d)", with, without)
	}
}
