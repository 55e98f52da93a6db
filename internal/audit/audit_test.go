package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
	"github.com/books-manager/books-manager-server/internal/store/badgerstore"
	"github.com/books-manager/books-manager-server/internal/store/storetest"
)

type recordingMetrics struct {
	mu            sync.Mutex
	discrepancies []int
	failures      int
}

func (m *recordingMetrics) SetDiscrepancies(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discrepancies = append(m.discrepancies, n)
}

func (m *recordingMetrics) AuditFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *recordingMetrics) runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.discrepancies)
}

type failingStore struct{ store.Store }

func (failingStore) View(context.Context, func(store.Tx) error) error {
	return errors.New("disk on fire")
}

func openStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	st, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func lend(t *testing.T, st store.Store, id string, isbn domain.ISBN, adjust bool) {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		if err := tx.CreateLoan(ctx, &domain.LoanRecord{
			ID:         id,
			ISBN:       isbn,
			Borrower:   "reader@example.com",
			BookName:   "Book",
			BorrowedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		}); err != nil {
			return err
		}
		if adjust {
			return tx.AdjustRemain(ctx, isbn, -1)
		}
		return nil
	}))
}

func TestAuditor_Run_Clean(t *testing.T) {
	st := openStore(t)
	storetest.SeedUser(t, st, "reader@example.com")
	storetest.SeedBook(t, st, "9780000000001", 3)
	storetest.SeedBook(t, st, "9780000000002", 1)
	lend(t, st, "loan-1", "9780000000001", true)
	lend(t, st, "loan-2", "9780000000002", true)

	metrics := &recordingMetrics{}
	report, err := New(st, Options{Metrics: metrics}).Run(t.Context())
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.Books)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []int{0}, metrics.discrepancies)
}

func TestAuditor_Run_FindsMismatch(t *testing.T) {
	st := openStore(t)
	storetest.SeedUser(t, st, "reader@example.com")
	storetest.SeedBook(t, st, "9780000000001", 3)
	storetest.SeedBook(t, st, "9780000000002", 2)
	// A loan written without taking a copy off the shelf.
	lend(t, st, "loan-1", "9780000000002", false)

	metrics := &recordingMetrics{}
	report, err := New(st, Options{Metrics: metrics}).Run(t.Context())
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, Discrepancy{
		ISBN:   "9780000000002",
		Stock:  2,
		Remain: 2,
		Loans:  1,
		Reason: ReasonLoanMismatch,
	}, report.Discrepancies[0])
	assert.Equal(t, []int{1}, metrics.discrepancies)
}

func TestAuditor_Run_StoreFailure(t *testing.T) {
	metrics := &recordingMetrics{}
	_, err := New(failingStore{}, Options{Metrics: metrics}).Run(t.Context())
	require.Error(t, err)
	assert.Equal(t, 1, metrics.failures)
	assert.Empty(t, metrics.discrepancies)
}

func TestCheck(t *testing.T) {
	books := []*domain.Book{
		{ISBN: "9780000000003", Stock: 2, Remain: 3},
		{ISBN: "9780000000001", Stock: 5, Remain: 3},
		{ISBN: "9780000000002", Stock: 1, Remain: 1},
		{ISBN: "9780000000004", Stock: 1, Remain: -1},
	}
	loans := map[domain.ISBN]int{
		"9780000000001": 2,
		"9780000000002": 1,
		"9780000000009": 4,
	}

	got := Check(books, loans)
	require.Len(t, got, 4)

	assert.Equal(t, domain.ISBN("9780000000002"), got[0].ISBN)
	assert.Equal(t, ReasonLoanMismatch, got[0].Reason)
	assert.Equal(t, ReasonCountsOutOfRange, got[1].Reason)
	assert.Equal(t, ReasonCountsOutOfRange, got[2].Reason)
	assert.Equal(t, Discrepancy{ISBN: "9780000000009", Loans: 4, Reason: ReasonOrphanLoans}, got[3])
}

func TestCheck_Empty(t *testing.T) {
	assert.Empty(t, Check(nil, nil))
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(New(openStore(t), Options{}), "whenever", nil)
	assert.Error(t, err)
}

func TestScheduler_Runs(t *testing.T) {
	st := openStore(t)
	storetest.SeedBook(t, st, "9780000000001", 1)

	metrics := &recordingMetrics{}
	s, err := NewScheduler(New(st, Options{Metrics: metrics}), "@every 1s", nil)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return metrics.runs() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
