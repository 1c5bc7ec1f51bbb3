package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/auth"
	"github.com/sakif/authcore/internal/oauth"
	"github.com/sakif/authcore/internal/repository"
	"github.com/sakif/authcore/internal/repository/sqlstore"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeClock is a settable time source shared by the manager and its
// session lifecycle.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// weakScorer rates "weak" passwords 0 and everything else 4.
type weakScorer struct{}

func (weakScorer) Score(password string, _ []string) int {
	if password == "weak" {
		return 0
	}
	return 4
}

// staticVerifier accepts assertions listed in identities.
type staticVerifier struct {
	name       string
	identities map[string]oauth.Identity
}

func (s staticVerifier) Name() string { return s.name }

func (s staticVerifier) Verify(_ context.Context, assertion string) (oauth.Identity, error) {
	id, ok := s.identities[assertion]
	if !ok {
		return oauth.Identity{}, &oauth.VerificationError{Provider: s.name, Reason: "unknown assertion"}
	}
	return id, nil
}

// mockRecorder is a testify mock for OutcomeRecorder.
type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordOutcome(operation string, code apperror.Code) {
	m.Called(operation, code)
}

// failingStore wraps a Store and fails every Update on the users table that
// touches password_hash outside a transaction.
type failingStore struct {
	repository.Store
}

func (f failingStore) Update(ctx context.Context, table string, set repository.Row, where ...repository.Cond) (int64, error) {
	if _, ok := set["password_hash"]; ok && table == repository.TableUsers {
		return 0, errors.New("disk full")
	}
	return f.Store.Update(ctx, table, set, where...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestPolicy uses bcrypt cost 4 so tests stay fast.
func newTestPolicy() *auth.PasswordPolicy {
	return auth.NewPasswordPolicy(bcrypt.MinCost, auth.DefaultMinStrength, weakScorer{})
}

// newTestManager returns a Manager backed by a fresh in-memory database and
// a fake clock. A "google" static verifier is registered with the given
// identities.
func newTestManager(t *testing.T, identities map[string]oauth.Identity, opts ...Option) (*Manager, *sqlstore.DB, *fakeClock) {
	t.Helper()
	db := newTestStore(t)
	clock := newFakeClock()

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	m := NewManager(db, newTestPolicy(), discardLogger(), opts...)

	if err := m.RegisterVerifier(staticVerifier{name: "google", identities: identities}); err != nil {
		t.Fatalf("RegisterVerifier() error = %v", err)
	}
	return m, db, clock
}

func countRows(t *testing.T, q repository.Querier, table string, where ...repository.Cond) int {
	t.Helper()
	rows, err := q.GetMany(context.Background(), table, where...)
	if err != nil {
		t.Fatalf("GetMany(%s) error = %v", table, err)
	}
	return len(rows)
}
