// Package ledger lends and takes back book copies.
//
// Every operation runs as one store.Update unit, so the availability check,
// the loan records and the remain adjustments of a batch commit together or
// not at all, and 0 <= remain <= stock holds for every book afterwards.
// The ledger never retries a failed unit; storage failures surface as
// ErrStorage.
package ledger

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/id"
	"github.com/books-manager/books-manager-server/internal/store"
)

// Clock supplies borrow and return timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the server clock.
var SystemClock Clock = ClockFunc(time.Now)

// UserDirectory resolves borrower identities.
type UserDirectory interface {
	Exists(ctx context.Context, email domain.Email) (bool, error)
	IsEnabled(ctx context.Context, email domain.Email) (bool, error)
}

// Metrics receives ledger outcomes.
type Metrics interface {
	CopiesBorrowed(n int)
	CopiesReturned(n int)
	BorrowRejected(reason string)
}

type nopMetrics struct{}

func (nopMetrics) CopiesBorrowed(int)    {}
func (nopMetrics) CopiesReturned(int)    {}
func (nopMetrics) BorrowRejected(string) {}

// ReturnPolicy decides what happens to a returned ISBN the borrower does
// not hold.
type ReturnPolicy int

const (
	// ReturnLenient skips ISBNs without a matching active loan.
	ReturnLenient ReturnPolicy = iota
	// ReturnStrict fails the whole batch with ErrNotBorrowed.
	ReturnStrict
)

// Options configures a Ledger. The zero value is usable.
type Options struct {
	// RejectReborrow fails a borrow naming an ISBN the borrower already
	// holds, or naming one ISBN twice.
	RejectReborrow bool
	ReturnPolicy   ReturnPolicy

	Clock   Clock
	NewID   func() (string, error)
	Logger  *slog.Logger
	Metrics Metrics
}

// Ledger runs borrow, return and stock operations against a store.
type Ledger struct {
	store  store.Store
	users  UserDirectory
	opts   Options
	logger *slog.Logger
}

// New creates a Ledger.
func New(st store.Store, users UserDirectory, opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.NewID == nil {
		opts.NewID = id.NewLoanID
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{
		store:  st,
		users:  users,
		opts:   opts,
		logger: logger.With("component", "ledger"),
	}
}

// ListActive returns the borrower's active loans, oldest first.
func (l *Ledger) ListActive(ctx context.Context, borrower domain.Email) ([]*domain.LoanRecord, error) {
	var loans []*domain.LoanRecord
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, store.LoanFilter{Borrower: borrower})
		return err
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	return loans, nil
}

// ListCompleted returns the borrower's completed loans in return order.
func (l *Ledger) ListCompleted(ctx context.Context, borrower domain.Email) ([]*domain.ReturnRecord, error) {
	var recs []*domain.ReturnRecord
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		recs, err = tx.ListReturns(ctx, store.ReturnFilter{Borrower: borrower})
		return err
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	return recs, nil
}

// countISBNs returns the distinct ISBNs of a batch in ascending order, and
// how often each occurs. Rows are always touched in this order so that
// concurrent units lock them consistently.
func countISBNs(isbns []domain.ISBN) ([]domain.ISBN, map[domain.ISBN]int) {
	counts := make(map[domain.ISBN]int, len(isbns))
	for _, isbn := range isbns {
		counts[isbn]++
	}
	distinct := make([]domain.ISBN, 0, len(counts))
	for isbn := range counts {
		distinct = append(distinct, isbn)
	}
	slices.Sort(distinct)
	return distinct, counts
}
