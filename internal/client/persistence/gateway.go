package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gutscan/internal/dbx"
	"github.com/dmitrijs2005/gutscan/internal/filex"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrEmptyWhere is returned by Delete when no condition is given.
var ErrEmptyWhere = errors.New("delete without conditions")

// Row is one result row keyed by column name.
type Row map[string]any

// Store is the query surface available both on the Gateway and inside a
// Transaction.
type Store interface {
	Dialect() Dialect

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row

	// Execute runs query and collects every row into schema-agnostic maps.
	Execute(ctx context.Context, query string, args ...any) ([]Row, error)

	// Upsert inserts values into table or, on a conflict over conflictCols,
	// overwrites the remaining columns.
	Upsert(ctx context.Context, table string, conflictCols []string, values map[string]any) error

	// Delete removes the rows of table matching every column of where and
	// returns how many were removed.
	Delete(ctx context.Context, table string, where map[string]any) (int64, error)
}

// Gateway is a Store that owns the connection and can open transactions.
type Gateway interface {
	Store
	Transaction(ctx context.Context, fn func(ctx context.Context, s Store) error) error
	Close() error
}

// Config selects the database to open.
type Config struct {
	Driver string // "sqlite" or "pgx"
	DSN    string
}

// DB is the database/sql backed Gateway.
type DB struct {
	store
	db *sql.DB
}

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if d == DialectSQLite {
		if path, ok := filex.SQLiteFile(cfg.DSN); ok {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	if d == DialectSQLite {
		// One writer; also keeps ":memory:" databases alive across calls.
		db.SetMaxOpenConns(1)
		for _, p := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("configure sqlite: %w", err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}

	if err := Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db, d), nil
}

// New wraps an already opened and migrated database.
func New(db *sql.DB, d Dialect) *DB {
	return &DB{store: store{q: db, dialect: d}, db: db}
}

// Transaction runs fn inside one transaction. fn's error, or a panic, rolls
// everything back.
func (g *DB) Transaction(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	return dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &store{q: tx, dialect: g.dialect})
	})
}

// Close releases the underlying pool.
func (g *DB) Close() error {
	return g.db.Close()
}

type store struct {
	q       dbx.DBTX
	dialect Dialect
}

func (s *store) Dialect() Dialect { return s.dialect }

func (s *store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *store) Execute(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *store) Upsert(ctx context.Context, table string, conflictCols []string, values map[string]any) error {
	if len(values) == 0 || len(conflictCols) == 0 {
		return errors.New("upsert needs values and conflict columns")
	}
	cols := sortedKeys(values)
	if err := checkIdent(append(append([]string{table}, conflictCols...), cols...)...); err != nil {
		return err
	}

	conflict := make(map[string]bool, len(conflictCols))
	for _, c := range conflictCols {
		if _, ok := values[c]; !ok {
			return fmt.Errorf("conflict column %q has no value", c)
		}
		conflict[c] = true
	}

	args := make([]any, 0, len(cols))
	var sets []string
	for _, c := range cols {
		args = append(args, values[c])
		if !conflict[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(conflictCols, ", "))
	if len(sets) == 0 {
		q += "DO NOTHING"
	} else {
		q += "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	_, err := s.Exec(ctx, q, args...)
	return err
}

func (s *store) Delete(ctx context.Context, table string, where map[string]any) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyWhere
	}
	cols := sortedKeys(where)
	if err := checkIdent(append([]string{table}, cols...)...); err != nil {
		return 0, err
	}

	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ?"
		args[i] = where[c]
	}

	res, err := s.Exec(ctx, "DELETE FROM "+table+" WHERE "+strings.Join(conds, " AND "), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
