package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
	"github.com/books-manager/books-manager-server/internal/store/storetest"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "books.db")
	s, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, setupTestStore)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BOOKS_MANAGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKS_MANAGER_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, Options{Driver: DriverPostgres, DSN: dsn})
		require.NoError(t, err)
		_, err = s.db.ExecContext(ctx, "TRUNCATE returns, loans, books, users")
		require.NoError(t, err)
		return s
	})
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, `unsupported sql driver "mysql"`)
}

func TestSQLiteDSN(t *testing.T) {
	got := sqliteDSN("/data/books.db")
	assert.Contains(t, got, "file:/data/books.db?")
	assert.Contains(t, got, "_pragma=foreign_keys(1)")
	assert.Contains(t, got, "_pragma=busy_timeout(5000)")
	assert.Contains(t, got, "_txlock=immediate")

	uri := "file::memory:?cache=shared"
	assert.Equal(t, uri, sqliteDSN(uri))
}

func TestTimeFormatSortsLexically(t *testing.T) {
	early := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	late := early.Add(1500 * time.Millisecond)

	a, b := formatTime(early), formatTime(late)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(late))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "books.db")

	s, err := Open(ctx, Options{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	storetest.SeedBook(t, s, "9787111111111", 4)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	var book *domain.Book
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		book, err = tx.GetBook(ctx, "9787111111111")
		return err
	}))
	assert.Equal(t, 4, book.Remain)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(sqlx.NewDb(db, "sqlmock"), DriverSQLite, nil), mock
}

func TestUpdate_ExecFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE .books.`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.AdjustRemain(ctx, "9787111111111", -1)
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE .books.`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.AdjustRemain(ctx, "9787111111111", -1)
	})
	assert.ErrorContains(t, err, "commit tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_BeginFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := s.Update(context.Background(), func(tx store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "begin tx")
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustRemain_NoRowsDistinguishesMissingBook(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE .books.`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM .books.`).
		WillReturnRows(sqlmock.NewRows([]string{"isbn", "name", "author", "publisher", "stock", "remain"}))
	mock.ExpectRollback()

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.AdjustRemain(ctx, "9787111111111", -1)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
