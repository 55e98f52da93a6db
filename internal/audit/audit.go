// Package audit cross-checks book copy counts against the loan records.
//
// A book is consistent when 0 <= remain <= stock and stock - remain equals
// the number of its active loans. The ledger keeps this true on every
// commit; the audit exists to catch rows edited behind its back.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// Reasons reported in Discrepancy.Reason.
const (
	ReasonCountsOutOfRange = "counts_out_of_range"
	ReasonLoanMismatch     = "loan_mismatch"
	ReasonOrphanLoans      = "orphan_loans"
)

// Metrics receives audit outcomes.
type Metrics interface {
	SetDiscrepancies(n int)
	AuditFailed()
}

type nopMetrics struct{}

func (nopMetrics) SetDiscrepancies(int) {}
func (nopMetrics) AuditFailed()         {}

// Discrepancy describes one inconsistent book.
type Discrepancy struct {
	ISBN   domain.ISBN `json:"isbn"`
	Stock  int         `json:"stock"`
	Remain int         `json:"remain"`
	Loans  int         `json:"loans"`
	Reason string      `json:"reason"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: %s (stock=%d remain=%d loans=%d)", d.ISBN, d.Reason, d.Stock, d.Remain, d.Loans)
}

// Report is the outcome of one audit run.
type Report struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Books         int           `json:"books"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Clean reports whether no discrepancy was found.
func (r *Report) Clean() bool { return len(r.Discrepancies) == 0 }

// Options configures an Auditor.
type Options struct {
	Metrics Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Auditor runs consistency checks against a store.
type Auditor struct {
	store   store.Store
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Auditor.
func New(st store.Store, opts Options) *Auditor {
	a := &Auditor{
		store:   st,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if a.metrics == nil {
		a.metrics = nopMetrics{}
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.logger = a.logger.With("component", "audit")
	return a
}

// Run reads every book and the active loan counts in one read-only unit and
// compares them.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: a.now()}
	log := a.logger.With("run_id", report.RunID)

	var (
		books []*domain.Book
		loans map[domain.ISBN]int
	)
	err := a.store.View(ctx, func(tx store.Tx) error {
		var err error
		if books, err = tx.ListBooks(ctx, store.BookFilter{}); err != nil {
			return err
		}
		loans, err = tx.CountLoansByISBN(ctx)
		return err
	})
	if err != nil {
		a.metrics.AuditFailed()
		log.Error("ledger audit failed", "error", err)
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	report.Books = len(books)
	report.Discrepancies = Check(books, loans)
	report.Duration = a.now().Sub(report.StartedAt)

	a.metrics.SetDiscrepancies(len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		log.Warn("ledger discrepancy",
			"isbn", d.ISBN,
			"reason", d.Reason,
			"stock", d.Stock,
			"remain", d.Remain,
			"loans", d.Loans,
		)
	}
	log.Info("ledger audit completed",
		"books", report.Books,
		"discrepancies", len(report.Discrepancies),
		"duration", report.Duration,
	)
	return report, nil
}

// Check compares books with their active loan counts. Loans for ISBNs that
// are not in books are reported as orphans. The result is ordered by ISBN.
func Check(books []*domain.Book, loans map[domain.ISBN]int) []Discrepancy {
	var out []Discrepancy
	seen := make(map[domain.ISBN]bool, len(books))

	for _, b := range books {
		seen[b.ISBN] = true
		n := loans[b.ISBN]
		d := Discrepancy{ISBN: b.ISBN, Stock: b.Stock, Remain: b.Remain, Loans: n}
		switch {
		case !b.Consistent():
			d.Reason = ReasonCountsOutOfRange
		case b.Borrowed() != n:
			d.Reason = ReasonLoanMismatch
		default:
			continue
		}
		out = append(out, d)
	}

	for isbn, n := range loans {
		if !seen[isbn] && n > 0 {
			out = append(out, Discrepancy{ISBN: isbn, Loans: n, Reason: ReasonOrphanLoans})
		}
	}

	slices.SortFunc(out, func(x, y Discrepancy) int {
		if x.ISBN < y.ISBN {
			return -1
		}
		if x.ISBN > y.ISBN {
			return 1
		}
		return 0
	})
	return out
}
