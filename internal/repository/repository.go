// Package repository defines the storage contract the auth core talks to.
//
// The core never writes SQL. It describes what it wants with a table name,
// a Row of column values and a list of Conds (predicates), and a backend
// turns that into queries. internal/repository/sqlstore is the database/sql
// backend.
//
// UNIQUENESS LIVES IN THE DATABASE:
// Two concurrent registrations with the same email, or two sessions that
// happen to draw the same token, are resolved by UNIQUE constraints. Backends
// report those violations as ErrDuplicate; the core decides what it means
// (EmailExists, a retryable token collision, ...).
package repository

import (
	"context"
	"errors"
	"fmt"
)

// Table names.
const (
	TableUsers    = "users"
	TableSessions = "sessions"
)

// ErrDuplicate is returned by Insert and Update when a UNIQUE constraint rejects the write.
var ErrDuplicate = errors.New("repository: duplicate key")

// Op is a comparison operator in a predicate.
type Op string

const (
	OpEq Op = "="
	OpGt Op = ">"
	OpLt Op = "<"
	OpIn Op = "IN"
)

// Cond is a single "column op value" predicate. Conds passed together are ANDed.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, v any) Cond { return Cond{Column: column, Op: OpEq, Value: v} }
func Gt(column string, v any) Cond { return Cond{Column: column, Op: OpGt, Value: v} }
func Lt(column string, v any) Cond { return Cond{Column: column, Op: OpLt, Value: v} }

// In matches rows whose column equals any of vs. An empty vs matches nothing.
func In[T any](column string, vs []T) Cond {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = v
	}
	return Cond{Column: column, Op: OpIn, Value: values}
}

// Row is a set of column values, as read from or written to a table.
//
// Values are plain Go scalars: int64, string, bool, nil. Timestamps are
// stored as unix seconds (int64).
type Row map[string]any

// Querier is the row-level API shared by a Store and a Tx.
type Querier interface {
	Exists(ctx context.Context, table string, where ...Cond) (bool, error)
	// GetOne returns the first matching row, or an error wrapping
	// apperror.ErrNotFound when there is none.
	GetOne(ctx context.Context, table string, where ...Cond) (Row, error)
	GetMany(ctx context.Context, table string, where ...Cond) ([]Row, error)
	// Insert adds a row and returns its generated id.
	Insert(ctx context.Context, table string, row Row) (int64, error)
	// Update sets the given columns on every matching row.
	Update(ctx context.Context, table string, set Row, where ...Cond) (int64, error)
	Delete(ctx context.Context, table string, where ...Cond) (int64, error)
}

// Store is a Querier that can open transactions.
type Store interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a Querier whose writes become visible together on Commit.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back when fn returns an error or panics.
func WithTx(ctx context.Context, s Store, fn func(q Querier) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("repository: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: committing transaction: %w", err)
	}
	return nil
}
