package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/store"
	"github.com/books-manager/books-manager-server/internal/store/badgerstore"
	"github.com/books-manager/books-manager-server/internal/store/sqlstore"
	"github.com/books-manager/books-manager-server/internal/store/storetest"
)

const (
	reader   domain.Email = "reader@example.com"
	disabled domain.Email = "locked@example.com"
	isbnA    domain.ISBN  = "1234567890123"
	isbnB    domain.ISBN  = "9787111111111"
)

// fakeDirectory resolves users from a fixed table.
type fakeDirectory struct {
	users map[domain.Email]bool // email -> enabled
	err   error
}

func (d *fakeDirectory) Exists(_ context.Context, email domain.Email) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	_, ok := d.users[email]
	return ok, nil
}

func (d *fakeDirectory) IsEnabled(_ context.Context, email domain.Email) (bool, error) {
	return d.users[email], d.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMetrics struct {
	mu       sync.Mutex
	borrowed int
	returned int
	rejected map[string]int
}

func (m *fakeMetrics) CopiesBorrowed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrowed += n
}

func (m *fakeMetrics) CopiesReturned(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returned += n
}

func (m *fakeMetrics) BorrowRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = map[string]int{}
	}
	m.rejected[reason]++
}

type testEnv struct {
	store   store.Store
	ledger  *Ledger
	clock   *fakeClock
	metrics *fakeMetrics
	users   *fakeDirectory
}

type backend struct {
	name string
	open storetest.Opener
}

var backends = []backend{
	{"badger", func(t *testing.T) store.Store {
		s, err := badgerstore.Open(badgerstore.Options{InMemory: true, BaseDelay: time.Millisecond})
		require.NoError(t, err)
		return s
	}},
	{"sqlite", func(t *testing.T) store.Store {
		s, err := sqlstore.Open(context.Background(), sqlstore.Options{
			Driver: sqlstore.DriverSQLite,
			DSN:    filepath.Join(t.TempDir(), "ledger.db"),
		})
		require.NoError(t, err)
		return s
	}},
}

func newTestEnv(t *testing.T, open storetest.Opener, opts Options) *testEnv {
	t.Helper()
	st := open(t)
	t.Cleanup(func() { _ = st.Close() })

	storetest.SeedUser(t, st, reader)
	storetest.SeedUser(t, st, disabled)

	env := &testEnv{
		store:   st,
		clock:   &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		metrics: &fakeMetrics{},
		users:   &fakeDirectory{users: map[domain.Email]bool{reader: true, disabled: false}},
	}
	opts.Clock = env.clock
	opts.Metrics = env.metrics
	env.ledger = New(st, env.users, opts)
	return env
}

// setupTestLedger uses the in-memory badger backend.
func setupTestLedger(t *testing.T, opts Options) *testEnv {
	t.Helper()
	return newTestEnv(t, backends[0].open, opts)
}

func (e *testEnv) book(t *testing.T, isbn domain.ISBN) *domain.Book {
	t.Helper()
	var b *domain.Book
	require.NoError(t, e.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		b, err = tx.GetBook(context.Background(), isbn)
		return err
	}))
	return b
}

func (e *testEnv) active(t *testing.T) []*domain.LoanRecord {
	t.Helper()
	loans, err := e.ledger.ListActive(context.Background(), reader)
	require.NoError(t, err)
	return loans
}

func (e *testEnv) completed(t *testing.T) []*domain.ReturnRecord {
	t.Helper()
	recs, err := e.ledger.ListCompleted(context.Background(), reader)
	require.NoError(t, err)
	return recs
}

func TestLedger_StockTwoScenario(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			env := newTestEnv(t, b.open, Options{})
			ctx := context.Background()
			storetest.SeedBook(t, env.store, isbnA, 2)

			loans, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA, isbnA})
			require.NoError(t, err)
			assert.Len(t, loans, 2)
			assert.Equal(t, 0, env.book(t, isbnA).Remain)
			assert.Len(t, env.active(t), 2)

			_, err = env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
			assert.ErrorIs(t, err, ErrUnavailable)

			env.clock.Advance(time.Hour)
			recs, err := env.ledger.Return(ctx, reader, []domain.ISBN{isbnA})
			require.NoError(t, err)
			require.Len(t, recs, 1)

			assert.Equal(t, 1, env.book(t, isbnA).Remain)
			assert.Len(t, env.active(t), 1)
			assert.Len(t, env.completed(t), 1)
		})
	}
}

func TestBorrow_DrainsStockThenUnavailable(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 3)

	for range 3 {
		_, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, env.book(t, isbnA).Remain)

	_, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	require.ErrorIs(t, err, ErrUnavailable)

	var coded *domainerrors.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, ISBNDetails{ISBNs: []domain.ISBN{isbnA}}, coded.Details)

	assert.Equal(t, 3, env.metrics.borrowed)
	assert.Equal(t, 1, env.metrics.rejected["unavailable"])
}

func TestBorrow_LoanRecordFields(t *testing.T) {
	env := setupTestLedger(t, Options{})
	storetest.SeedBook(t, env.store, isbnA, 1)

	loans, err := env.ledger.Borrow(context.Background(), reader, []domain.ISBN{isbnA})
	require.NoError(t, err)
	require.Len(t, loans, 1)

	loan := loans[0]
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, isbnA, loan.ISBN)
	assert.Equal(t, reader, loan.Borrower)
	assert.Equal(t, domain.BookName("Book "+isbnA), loan.BookName)
	assert.True(t, loan.BorrowedAt.Equal(env.clock.Now()))
}

func TestBorrow_ConcurrentLastCopy(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			env := newTestEnv(t, b.open, Options{})
			storetest.SeedBook(t, env.store, isbnA, 1)

			const workers = 8
			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = env.ledger.Borrow(context.Background(), reader, []domain.ISBN{isbnA})
				}()
			}
			wg.Wait()

			successes := 0
			for _, err := range errs {
				if err == nil {
					successes++
					continue
				}
				assert.ErrorIs(t, err, ErrUnavailable)
			}
			assert.Equal(t, 1, successes)
			assert.Equal(t, 0, env.book(t, isbnA).Remain)
			assert.Len(t, env.active(t), 1)
		})
	}
}

func TestBorrow_AllOrNothing(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 2)
	storetest.SeedBook(t, env.store, isbnB, 1)

	tests := []struct {
		name  string
		isbns []domain.ISBN
	}{
		{"missing book", []domain.ISBN{isbnA, "9780000000000"}},
		{"too many occurrences", []domain.ISBN{isbnA, isbnB, isbnB}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.Borrow(ctx, reader, tt.isbns)
			require.ErrorIs(t, err, ErrUnavailable)

			assert.Equal(t, 2, env.book(t, isbnA).Remain)
			assert.Equal(t, 1, env.book(t, isbnB).Remain)
			assert.Empty(t, env.active(t))
		})
	}
}

func TestBorrow_BorrowerChecks(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 1)

	_, err := env.ledger.Borrow(ctx, "ghost@example.com", []domain.ISBN{isbnA})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.ledger.Borrow(ctx, disabled, []domain.ISBN{isbnA})
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, err = env.ledger.Borrow(ctx, reader, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	env.users.err = errors.New("directory down")
	_, err = env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	assert.ErrorIs(t, err, ErrStorage)

	assert.Equal(t, 1, env.book(t, isbnA).Remain)
}

func TestBorrow_RejectReborrow(t *testing.T) {
	env := setupTestLedger(t, Options{RejectReborrow: true})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 3)
	storetest.SeedBook(t, env.store, isbnB, 3)

	_, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA, isbnA})
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)

	_, err = env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)

	_, err = env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnB, isbnA})
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	assert.Equal(t, 3, env.book(t, isbnB).Remain)
	assert.Equal(t, 2, env.book(t, isbnA).Remain)

	_, err = env.ledger.Return(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)
	_, err = env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	assert.NoError(t, err)
	assert.Equal(t, 2, env.metrics.rejected["already_borrowed"])
}

func TestReturn_StampsAndRestores(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 1)

	loans, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)

	env.clock.Advance(48 * time.Hour)
	recs, err := env.ledger.Return(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, loans[0].ID, rec.ID)
	assert.True(t, rec.BorrowedAt.Equal(loans[0].BorrowedAt))
	assert.True(t, rec.ReturnedAt.Equal(env.clock.Now()))
	assert.False(t, rec.ReturnedAt.Before(rec.BorrowedAt))

	assert.Equal(t, 1, env.book(t, isbnA).Remain)
	assert.Empty(t, env.active(t))
	assert.Len(t, env.completed(t), 1)
	assert.Equal(t, 1, env.metrics.returned)
}

func TestReturn_OldestLoanFirst(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 2)

	first, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	second, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)

	recs, err := env.ledger.Return(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, first[0].ID, recs[0].ID)

	active := env.active(t)
	require.Len(t, active, 1)
	assert.Equal(t, second[0].ID, active[0].ID)
}

func TestReturn_ClockMovedBackwards(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 1)

	loans, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)

	env.clock.Advance(-time.Hour)
	recs, err := env.ledger.Return(ctx, reader, []domain.ISBN{isbnA})
	require.NoError(t, err)
	assert.True(t, recs[0].ReturnedAt.Equal(loans[0].BorrowedAt))
}

func TestReturn_UnmatchedISBNs(t *testing.T) {
	tests := []struct {
		name    string
		policy  ReturnPolicy
		wantErr error
		remain  int
		active  int
	}{
		{"lenient skips", ReturnLenient, nil, 2, 0},
		{"strict fails the batch", ReturnStrict, ErrNotBorrowed, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestLedger(t, Options{ReturnPolicy: tt.policy})
			ctx := context.Background()
			storetest.SeedBook(t, env.store, isbnA, 2)
			storetest.SeedBook(t, env.store, isbnB, 2)

			_, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA})
			require.NoError(t, err)

			_, err = env.ledger.Return(ctx, reader, []domain.ISBN{isbnA, isbnB, isbnA})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tt.remain, env.book(t, isbnA).Remain)
			assert.Equal(t, 2, env.book(t, isbnB).Remain)
			assert.Len(t, env.active(t), tt.active)
		})
	}
}

func TestReturn_EmptyBatch(t *testing.T) {
	env := setupTestLedger(t, Options{})
	_, err := env.ledger.Return(context.Background(), reader, []domain.ISBN{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestUpdateStock(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 5)

	_, err := env.ledger.Borrow(ctx, reader, []domain.ISBN{isbnA, isbnA, isbnA})
	require.NoError(t, err)

	_, err = env.ledger.UpdateStock(ctx, isbnA, 2)
	require.ErrorIs(t, err, ErrStockTooLow)
	var coded *domainerrors.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, StockDetails{Borrowed: 3, Requested: 2}, coded.Details)

	book := env.book(t, isbnA)
	assert.Equal(t, 5, book.Stock)
	assert.Equal(t, 2, book.Remain)

	updated, err := env.ledger.UpdateStock(ctx, isbnA, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Stock)
	assert.Equal(t, 0, updated.Remain)

	updated, err = env.ledger.UpdateStock(ctx, isbnA, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Remain)
	assert.Equal(t, updated, env.book(t, isbnA))

	_, err = env.ledger.UpdateStock(ctx, "9780000000000", 1)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCheck(t *testing.T) {
	env := setupTestLedger(t, Options{})
	ctx := context.Background()
	storetest.SeedBook(t, env.store, isbnA, 1)

	assert.NoError(t, env.ledger.Check(ctx, []domain.ISBN{isbnA}))
	assert.ErrorIs(t, env.ledger.Check(ctx, []domain.ISBN{isbnA, isbnA}), ErrUnavailable)
	assert.ErrorIs(t, env.ledger.Check(ctx, nil), ErrEmptyBatch)
}

// failingStore fails the n-th CreateLoan of every Update unit.
type failingStore struct {
	store.Store
	failAt int
}

type failingTx struct {
	store.Tx
	calls  int
	failAt int
}

var errDiskFull = errors.New("disk full")

func (t *failingTx) CreateLoan(ctx context.Context, loan *domain.LoanRecord) error {
	t.calls++
	if t.calls == t.failAt {
		return errDiskFull
	}
	return t.Tx.CreateLoan(ctx, loan)
}

func (s *failingStore) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.Update(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, failAt: s.failAt})
	})
}

func TestBorrow_StorageFailureCommitsNothing(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			env := newTestEnv(t, b.open, Options{})
			ctx := context.Background()
			storetest.SeedBook(t, env.store, isbnA, 2)
			storetest.SeedBook(t, env.store, isbnB, 2)

			l := New(&failingStore{Store: env.store, failAt: 2}, env.users, Options{Clock: env.clock})
			_, err := l.Borrow(ctx, reader, []domain.ISBN{isbnA, isbnB})
			require.ErrorIs(t, err, ErrStorage)
			assert.ErrorIs(t, err, errDiskFull)

			assert.Equal(t, 2, env.book(t, isbnA).Remain)
			assert.Equal(t, 2, env.book(t, isbnB).Remain)
			assert.Empty(t, env.active(t))
		})
	}
}

func TestRestock(t *testing.T) {
	book := domain.NewBook(isbnA, "Name", "", "", 4)
	book.Remain = 1

	err := Restock(book, 2)
	assert.ErrorIs(t, err, ErrStockTooLow)
	assert.Equal(t, 4, book.Stock)

	require.NoError(t, Restock(book, 3))
	assert.Equal(t, 3, book.Stock)
	assert.Equal(t, 0, book.Remain)
}
