/*
Package sqlstore provides a SQL-backed implementation of ledger.TxStore.

PURPOSE:
  Persists the bottle ledger in SQLite (default, single file or :memory:)
  or PostgreSQL. Both dialects share every query; sqlx rebinds the
  placeholders for the driver in use.

KEY TABLES:
  total_bottles: the single versioned stock row (id = 'current')
  bottle_usage:  one row per (moderator_id, day), enforced by a unique index
  customers, deliveries, misc_deliveries, other_expenses
  moderators, admins: reference tables

CONCURRENCY:
  Every ledger operation runs inside WithTx.
  - total_bottles carries a version column; UpdateStock only writes when
    the version read is still current, otherwise it returns
    ledger.ErrConcurrentModification.
  - On PostgreSQL, reads of total_bottles, bottle_usage and customers
    inside a transaction take a row lock (SELECT ... FOR UPDATE), so a
    competing writer waits instead of reading stale counters.
  - SQLite allows a single writer. Transactions are serialized with a
    mutex and the pool is capped at one connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

TIMESTAMPS:
  Stored as fixed-width UTC text so that range filters compare correctly
  as strings on both engines. Days are stored as YYYY-MM-DD.

USAGE:
  store, err := sqlstore.OpenSQLite("./data/bottles.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/bottle-ledger/ledger"
)

// Dialect selects the SQL engine.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

// lockClause is appended to row reads inside a transaction.
func (d Dialect) lockClause() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (d Dialect) schema() string {
	if d == Postgres {
		return postgresSchema
	}
	return sqliteSchema
}

// Store implements ledger.TxStore on top of database/sql.
type Store struct {
	repo
	db *sqlx.DB
	mu sync.Mutex
}

var _ ledger.TxStore = (*Store)(nil)

// OpenSQLite opens (or creates) a SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sqlx.Open(SQLite.DriverName(), path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return open(db, SQLite)
}

// OpenPostgres connects to PostgreSQL with a pgx DSN and migrates it.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, Postgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return open(db, Postgres)
}

func open(db *sqlx.DB, d Dialect) (*Store, error) {
	s := NewWithDB(db.DB, d)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection without migrating it.
func NewWithDB(db *sql.DB, d Dialect) *Store {
	x := sqlx.NewDb(db, d.DriverName())
	return &Store{repo: repo{q: x, dialect: d}, db: x}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect reports the SQL engine behind the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(s.dialect.schema(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside a database transaction and commits if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	if s.dialect == SQLite {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&repo{q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// mapError turns engine-specific failures into ledger errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ledger.ErrConcurrentModification, pgErr.Message)
		case "23505": // unique_violation
			return &ledger.ConflictError{Entity: pgErr.TableName, Reason: "duplicate " + pgErr.ConstraintName}
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique, liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return &ledger.ConflictError{Entity: "record", Reason: liteErr.Error()}
		case liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %s", ledger.ErrConcurrentModification, liteErr.Error())
		}
	}
	return err
}
