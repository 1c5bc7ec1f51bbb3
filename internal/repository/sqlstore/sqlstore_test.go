package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/repository"
)

// newTestDB creates an in-memory SQLite store with migrations applied.
// t.Cleanup closes it when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertUser(t *testing.T, q repository.Querier, email string) int64 {
	t.Helper()
	id, err := q.Insert(context.Background(), repository.TableUsers, repository.Row{
		"email":      email,
		"created":    int64(1000),
		"last_login": int64(1000),
		"active":     true,
	})
	if err != nil {
		t.Fatalf("failed to insert user %s: %v", email, err)
	}
	return id
}

// =========================================================================
// OPEN / MIGRATE
// =========================================================================

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	// A second run finds nothing pending.
	require.NoError(t, db.Migrate(context.Background(), nil))
	assert.Equal(t, DriverSQLite, db.Driver())
	assert.NoError(t, db.Ping(context.Background()))
}

// =========================================================================
// CRUD
// =========================================================================

func TestInsertAndGetOne(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := insertUser(t, db, "alice@example.com")
	assert.Positive(t, id)

	row, err := db.GetOne(ctx, repository.TableUsers, repository.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", row["email"])
	assert.Equal(t, int64(1000), row["created"])
	assert.Nil(t, row["password_hash"])
}

func TestGetOne_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetOne(context.Background(), repository.TableUsers, repository.Eq("id", 999))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetOne() error = %v, want ErrNotFound", err)
	}
}

func TestInsert_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	insertUser(t, db, "alice@example.com")

	_, err := db.Insert(context.Background(), repository.TableUsers, repository.Row{
		"email":      "alice@example.com",
		"created":    int64(1),
		"last_login": int64(1),
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("Insert() error = %v, want ErrDuplicate", err)
	}
}

func TestInsert_DuplicateOAuthIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	row := func(email string) repository.Row {
		return repository.Row{
			"email": email, "created": int64(1), "last_login": int64(1),
			"oauth_service": "google", "oauth_id": "g-1",
		}
	}
	_, err := db.Insert(ctx, repository.TableUsers, row("a@example.com"))
	require.NoError(t, err)

	_, err = db.Insert(ctx, repository.TableUsers, row("b@example.com"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestInsert_UnknownUserForSession(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Insert(context.Background(), repository.TableSessions, repository.Row{
		"token": "abc", "user_id": int64(42),
		"created": int64(1), "last_access": int64(1), "expires": int64(2),
	})
	require.Error(t, err, "foreign keys must be enforced")
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
}

func TestExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertUser(t, db, "alice@example.com")

	ok, err := db.Exists(ctx, repository.TableUsers, repository.Eq("email", "alice@example.com"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Exists(ctx, repository.TableUsers, repository.Eq("email", "bob@example.com"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMany_Conditions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := insertUser(t, db, "a@example.com")
	b := insertUser(t, db, "b@example.com")
	c := insertUser(t, db, "c@example.com")

	tests := []struct {
		name    string
		where   []repository.Cond
		wantIDs []int64
	}{
		{"no conditions", nil, []int64{a, b, c}},
		{"in", []repository.Cond{repository.In("id", []int64{c, a})}, []int64{a, c}},
		{"empty in", []repository.Cond{repository.In("id", []int64{})}, nil},
		{"gt", []repository.Cond{repository.Gt("id", a)}, []int64{b, c}},
		{"lt and eq", []repository.Cond{repository.Lt("id", c), repository.Eq("email", "b@example.com")}, []int64{b}},
		{"is null", []repository.Cond{repository.Eq("oauth_id", nil)}, []int64{a, b, c}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := db.GetMany(ctx, repository.TableUsers, tt.where...)
			require.NoError(t, err)

			var got []int64
			for _, r := range rows {
				got = append(got, r["id"].(int64))
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := insertUser(t, db, "alice@example.com")
	insertUser(t, db, "bob@example.com")

	n, err := db.Update(ctx, repository.TableUsers,
		repository.Row{"active": false, "password_hash": "$2a$10$x"},
		repository.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := db.GetOne(ctx, repository.TableUsers, repository.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, int64(0), row["active"])
	assert.Equal(t, "$2a$10$x", row["password_hash"])

	n, err = db.Update(ctx, repository.TableUsers, repository.Row{"email": "bob@example.com"}, repository.Eq("id", id))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Zero(t, n)

	n, err = db.Delete(ctx, repository.TableUsers, repository.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.Delete(ctx, repository.TableUsers, repository.Eq("id", id))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInvalidIdentifierRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetMany(ctx, "users; DROP TABLE users")
	assert.ErrorContains(t, err, "invalid identifier")

	_, err = db.GetMany(ctx, repository.TableUsers, repository.Eq("email OR 1=1", "x"))
	assert.ErrorContains(t, err, "invalid identifier")
}

// =========================================================================
// TRANSACTIONS
// =========================================================================

func TestWithTx_CommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := repository.WithTx(ctx, db, func(q repository.Querier) error {
		insertUser(t, q, "committed@example.com")
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repository.WithTx(ctx, db, func(q repository.Querier) error {
		insertUser(t, q, "rolledback@example.com")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := db.Exists(ctx, repository.TableUsers, repository.Eq("email", "committed@example.com"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Exists(ctx, repository.TableUsers, repository.Eq("email", "rolledback@example.com"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// =========================================================================
// SQL GENERATION
// =========================================================================

func TestBuilder_PostgresPlaceholders(t *testing.T) {
	b := &builder{d: dialects[DriverPostgres]}
	b.write("SELECT * FROM ")
	require.NoError(t, b.ident("sessions"))
	require.NoError(t, b.where([]repository.Cond{
		repository.Eq("token", "abc"),
		repository.Gt("expires", int64(10)),
		repository.In("user_id", []int64{1, 2}),
	}))

	assert.Equal(t,
		`SELECT * FROM "sessions" WHERE "token" = $1 AND "expires" > $2 AND "user_id" IN ($3, $4)`,
		b.sb.String())
	assert.Equal(t, []any{"abc", int64(10), int64(1), int64(2)}, b.args)
}

func TestBuilder_SQLitePlaceholders(t *testing.T) {
	b := &builder{d: dialects[DriverSQLite]}
	require.NoError(t, b.where([]repository.Cond{
		repository.Eq("email", "a@example.com"),
		repository.In("id", []string{}),
	}))
	assert.Equal(t, ` WHERE "email" = ? AND 1 = 0`, b.sb.String())
}
