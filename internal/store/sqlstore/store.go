// Package sqlstore implements store.Store on SQL databases.
//
// Two drivers are supported: embedded SQLite (modernc.org/sqlite) and
// PostgreSQL (lib/pq). Queries are built with goqu and executed with sqlx.
//
// Write units are serialized per book. On SQLite every transaction starts
// with BEGIN IMMEDIATE, so writers queue on the database lock. On PostgreSQL
// rows read inside an Update unit are locked with SELECT ... FOR UPDATE, and
// remain changes additionally use a conditional UPDATE.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu sqlite dialect
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/books-manager/books-manager-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Driver selects the SQL backend.
type Driver string

// Supported drivers.
const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Options configures Open.
type Options struct {
	Driver Driver
	// DSN is a PostgreSQL connection string, or for SQLite a file path or
	// a complete "file:" URI.
	DSN    string
	Logger *slog.Logger
}

// Store is a SQL-backed store.Store.
type Store struct {
	db      *sqlx.DB
	driver  Driver
	dialect goqu.DialectWrapper
	logger  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database, configures the pool and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch opts.Driver {
	case DriverSQLite:
		db, err = sqlx.Open("sqlite", sqliteDSN(opts.DSN))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	case DriverPostgres:
		db, err = sqlx.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	s := newStore(db, opts.Driver, opts.Logger)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sql store opened", "driver", string(opts.Driver))
	return s, nil
}

func newStore(db *sqlx.DB, driver Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dialect := "sqlite3"
	if driver == DriverPostgres {
		dialect = "postgres"
	}
	return &Store{
		db:      db,
		driver:  driver,
		dialect: goqu.Dialect(dialect),
		logger:  logger,
	}
}

// sqliteDSN turns a file path into a URI that enables foreign keys, WAL and
// a busy timeout on every pooled connection, and makes every transaction
// take the write lock up front.
func sqliteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_txlock=immediate"
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, false, fn)
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, write bool, fn func(tx store.Tx) error) (err error) {
	opts := &sql.TxOptions{}
	if !write && s.driver == DriverPostgres {
		opts.ReadOnly = true
	}

	sqlTx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	t := &tx{
		tx:        sqlTx,
		dialect:   s.dialect,
		forUpdate: write && s.driver == DriverPostgres,
	}

	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// tx implements store.Tx on one SQL transaction.
type tx struct {
	tx        *sqlx.Tx
	dialect   goqu.DialectWrapper
	forUpdate bool
}

// sqlBuilder is satisfied by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (t *tx) selectAll(ctx context.Context, dest any, ds sqlBuilder) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return t.tx.SelectContext(ctx, dest, query, args...)
}

func (t *tx) selectOne(ctx context.Context, dest any, ds sqlBuilder) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return t.tx.GetContext(ctx, dest, query, args...)
}

func (t *tx) exec(ctx context.Context, ds sqlBuilder) (int64, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
