package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// Borrow lends one copy per ISBN occurrence to borrower. The borrower must
// exist and be enabled. Either every copy is lent or nothing changes.
func (l *Ledger) Borrow(ctx context.Context, borrower domain.Email, isbns []domain.ISBN) ([]*domain.LoanRecord, error) {
	loans, err := l.borrow(ctx, borrower, isbns)
	if err != nil {
		l.opts.Metrics.BorrowRejected(rejectReason(err))
		l.logger.Info("borrow rejected", "borrower", borrower, "isbns", isbns, "error", err)
		return nil, err
	}

	l.opts.Metrics.CopiesBorrowed(len(loans))
	l.logger.Info("books borrowed", "borrower", borrower, "copies", len(loans))
	return loans, nil
}

func (l *Ledger) borrow(ctx context.Context, borrower domain.Email, isbns []domain.ISBN) ([]*domain.LoanRecord, error) {
	if len(isbns) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := l.checkBorrower(ctx, borrower); err != nil {
		return nil, err
	}

	distinct, counts := countISBNs(isbns)
	if l.opts.RejectReborrow && len(distinct) < len(isbns) {
		var dup []domain.ISBN
		for _, isbn := range distinct {
			if counts[isbn] > 1 {
				dup = append(dup, isbn)
			}
		}
		return nil, ErrAlreadyBorrowed.WithDetails(ISBNDetails{ISBNs: dup})
	}

	ids := make([]string, len(isbns))
	for i := range ids {
		loanID, err := l.opts.NewID()
		if err != nil {
			return nil, storageFailure(fmt.Errorf("generate loan id: %w", err))
		}
		ids[i] = loanID
	}
	now := l.opts.Clock.Now()

	var loans []*domain.LoanRecord
	err := l.store.Update(ctx, func(tx store.Tx) error {
		loans = loans[:0]

		books, err := CheckAvailability(ctx, tx, isbns)
		if err != nil {
			return err
		}

		if l.opts.RejectReborrow {
			held, err := tx.ListLoans(ctx, store.LoanFilter{Borrower: borrower, ISBNs: distinct})
			if err != nil {
				return err
			}
			if len(held) > 0 {
				heldISBNs := make([]domain.ISBN, 0, len(held))
				for _, h := range held {
					heldISBNs = append(heldISBNs, h.ISBN)
				}
				return ErrAlreadyBorrowed.WithDetails(ISBNDetails{ISBNs: heldISBNs})
			}
		}

		next := 0
		for _, isbn := range distinct {
			n := counts[isbn]
			if err := tx.AdjustRemain(ctx, isbn, -n); err != nil {
				return err
			}
			for range n {
				loan := &domain.LoanRecord{
					ID:         ids[next],
					ISBN:       isbn,
					Borrower:   borrower,
					BookName:   books[isbn].Name,
					BorrowedAt: now,
				}
				next++
				if err := tx.CreateLoan(ctx, loan); err != nil {
					return err
				}
				loans = append(loans, loan)
			}
		}
		return nil
	})
	if err != nil {
		return nil, borrowFailure(err)
	}
	return loans, nil
}

func (l *Ledger) checkBorrower(ctx context.Context, borrower domain.Email) error {
	exists, err := l.users.Exists(ctx, borrower)
	if err != nil {
		return storageFailure(err)
	}
	if !exists {
		return ErrUserNotFound
	}
	enabled, err := l.users.IsEnabled(ctx, borrower)
	if err != nil {
		return storageFailure(err)
	}
	if !enabled {
		return ErrAccountDisabled
	}
	return nil
}

// borrowFailure maps a failed borrow unit to a ledger error. A remain
// adjustment refused by the store means another unit took the copies first.
func borrowFailure(err error) error {
	if errors.Is(err, store.ErrInsufficientRemain) || errors.Is(err, store.ErrNotFound) {
		return ErrUnavailable.WithCause(err)
	}
	return storageFailure(err)
}
