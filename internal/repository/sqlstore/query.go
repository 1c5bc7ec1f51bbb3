package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/repository"
)

// execer is the part of *sql.DB and *sql.Tx the query builder needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect captures the per-driver differences in generated SQL.
type dialect struct {
	// placeholder returns the bind marker for the n-th argument (1-based).
	placeholder func(n int) string
}

var dialects = map[string]dialect{
	DriverSQLite:   {placeholder: func(int) string { return "?" }},
	DriverPostgres: {placeholder: func(n int) string { return "$" + strconv.Itoa(n) }},
}

// identRe restricts table and column names. They are interpolated into SQL,
// so anything else is rejected before a query is built.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("sqlstore: invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// builder accumulates a statement and its arguments.
type builder struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func (b *builder) write(s string) {
	b.sb.WriteString(s)
}

func (b *builder) bind(v any) {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.placeholder(len(b.args)))
}

func (b *builder) ident(name string) error {
	q, err := quoteIdent(name)
	if err != nil {
		return err
	}
	b.sb.WriteString(q)
	return nil
}

func (b *builder) where(conds []repository.Cond) error {
	if len(conds) == 0 {
		return nil
	}
	b.write(" WHERE ")
	for i, c := range conds {
		if i > 0 {
			b.write(" AND ")
		}
		if err := b.cond(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) cond(c repository.Cond) error {
	switch c.Op {
	case repository.OpEq, repository.OpGt, repository.OpLt:
		if err := b.ident(c.Column); err != nil {
			return err
		}
		if c.Value == nil && c.Op == repository.OpEq {
			b.write(" IS NULL")
			return nil
		}
		b.write(" " + string(c.Op) + " ")
		b.bind(c.Value)
	case repository.OpIn:
		values, ok := c.Value.([]any)
		if !ok {
			return fmt.Errorf("sqlstore: IN on %q needs a list, got %T", c.Column, c.Value)
		}
		if len(values) == 0 {
			b.write("1 = 0")
			return nil
		}
		if err := b.ident(c.Column); err != nil {
			return err
		}
		b.write(" IN (")
		for i, v := range values {
			if i > 0 {
				b.write(", ")
			}
			b.bind(v)
		}
		b.write(")")
	default:
		return fmt.Errorf("sqlstore: unsupported operator %q", c.Op)
	}
	return nil
}

// sortedColumns returns row's keys in a stable order so generated SQL is
// deterministic.
func sortedColumns(row repository.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// querier implements repository.Querier against any execer.
type querier struct {
	ex execer
	d  dialect
}

func (q querier) Exists(ctx context.Context, table string, where ...repository.Cond) (bool, error) {
	b := &builder{d: q.d}
	b.write("SELECT 1 FROM ")
	if err := b.ident(table); err != nil {
		return false, err
	}
	if err := b.where(where); err != nil {
		return false, err
	}
	b.write(" LIMIT 1")

	var one int
	err := q.ex.QueryRowContext(ctx, b.sb.String(), b.args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlstore: exists in %s: %w", table, err)
	}
	return true, nil
}

func (q querier) GetOne(ctx context.Context, table string, where ...repository.Cond) (repository.Row, error) {
	rows, err := q.selectRows(ctx, table, where, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sqlstore: %s: %w", table, apperror.ErrNotFound)
	}
	return rows[0], nil
}

func (q querier) GetMany(ctx context.Context, table string, where ...repository.Cond) ([]repository.Row, error) {
	return q.selectRows(ctx, table, where, 0)
}

func (q querier) selectRows(ctx context.Context, table string, where []repository.Cond, limit int) ([]repository.Row, error) {
	b := &builder{d: q.d}
	b.write("SELECT * FROM ")
	if err := b.ident(table); err != nil {
		return nil, err
	}
	if err := b.where(where); err != nil {
		return nil, err
	}
	b.write(` ORDER BY "id"`)
	if limit > 0 {
		b.write(" LIMIT " + strconv.Itoa(limit))
	}

	rows, err := q.ex.QueryContext(ctx, b.sb.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: selecting from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading columns of %s: %w", table, err)
	}

	var out []repository.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning %s row: %w", table, err)
		}
		row := make(repository.Row, len(cols))
		for i, c := range cols {
			// Drivers hand TEXT back as []byte; the core works with strings.
			if bs, ok := values[i].([]byte); ok {
				row[c] = string(bs)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating %s rows: %w", table, err)
	}
	return out, nil
}

func (q querier) Insert(ctx context.Context, table string, row repository.Row) (int64, error) {
	if len(row) == 0 {
		return 0, fmt.Errorf("sqlstore: insert into %s: no columns", table)
	}

	b := &builder{d: q.d}
	b.write("INSERT INTO ")
	if err := b.ident(table); err != nil {
		return 0, err
	}
	cols := sortedColumns(row)
	b.write(" (")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		if err := b.ident(c); err != nil {
			return 0, err
		}
	}
	b.write(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.bind(row[c])
	}
	b.write(`) RETURNING "id"`)

	var id int64
	if err := q.ex.QueryRowContext(ctx, b.sb.String(), b.args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("sqlstore: insert into %s: %w", table, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("sqlstore: insert into %s: %w", table, err)
	}
	return id, nil
}

func (q querier) Update(ctx context.Context, table string, set repository.Row, where ...repository.Cond) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}

	b := &builder{d: q.d}
	b.write("UPDATE ")
	if err := b.ident(table); err != nil {
		return 0, err
	}
	b.write(" SET ")
	for i, c := range sortedColumns(set) {
		if i > 0 {
			b.write(", ")
		}
		if err := b.ident(c); err != nil {
			return 0, err
		}
		b.write(" = ")
		b.bind(set[c])
	}
	if err := b.where(where); err != nil {
		return 0, err
	}

	res, err := q.ex.ExecContext(ctx, b.sb.String(), b.args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("sqlstore: update %s: %w", table, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("sqlstore: update %s: %w", table, err)
	}
	return affected(res, table)
}

func (q querier) Delete(ctx context.Context, table string, where ...repository.Cond) (int64, error) {
	b := &builder{d: q.d}
	b.write("DELETE FROM ")
	if err := b.ident(table); err != nil {
		return 0, err
	}
	if err := b.where(where); err != nil {
		return 0, err
	}

	res, err := q.ex.ExecContext(ctx, b.sb.String(), b.args...)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: delete from %s: %w", table, err)
	}
	return affected(res, table)
}

func affected(res sql.Result, table string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: rows affected in %s: %w", table, err)
	}
	return n, nil
}
