package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// Return takes back one copy per ISBN occurrence from borrower, closing the
// oldest matching active loan each time. ISBNs the borrower does not hold
// are skipped under ReturnLenient and fail the batch under ReturnStrict.
func (l *Ledger) Return(ctx context.Context, borrower domain.Email, isbns []domain.ISBN) ([]*domain.ReturnRecord, error) {
	if len(isbns) == 0 {
		return nil, ErrEmptyBatch
	}

	distinct, counts := countISBNs(isbns)
	now := l.opts.Clock.Now()

	var returned []*domain.ReturnRecord
	var skipped []domain.ISBN
	err := l.store.Update(ctx, func(tx store.Tx) error {
		returned, skipped = returned[:0], skipped[:0]

		held, err := tx.ListLoans(ctx, store.LoanFilter{Borrower: borrower, ISBNs: distinct})
		if err != nil {
			return err
		}
		byISBN := make(map[domain.ISBN][]*domain.LoanRecord, len(distinct))
		for _, loan := range held {
			byISBN[loan.ISBN] = append(byISBN[loan.ISBN], loan)
		}

		matched := make(map[domain.ISBN][]*domain.LoanRecord, len(distinct))
		for _, isbn := range distinct {
			loans := byISBN[isbn]
			n := min(counts[isbn], len(loans))
			matched[isbn] = loans[:n]
			if n < counts[isbn] {
				skipped = append(skipped, isbn)
			}
		}
		if len(skipped) > 0 && l.opts.ReturnPolicy == ReturnStrict {
			return ErrNotBorrowed.WithDetails(ISBNDetails{ISBNs: skipped})
		}

		for _, isbn := range distinct {
			loans := matched[isbn]
			if len(loans) == 0 {
				continue
			}
			for _, loan := range loans {
				if err := tx.DeleteLoan(ctx, loan.ID); err != nil {
					return err
				}
				rec := loan.Complete(returnTime(now, loan.BorrowedAt))
				if err := tx.CreateReturn(ctx, rec); err != nil {
					return err
				}
				returned = append(returned, rec)
			}
			if err := tx.AdjustRemain(ctx, isbn, len(loans)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotBorrowed) {
			l.logger.Info("return rejected", "borrower", borrower, "isbns", skipped)
		}
		return nil, storageFailure(err)
	}

	if len(skipped) > 0 {
		l.logger.Debug("returned isbns not on loan were skipped", "borrower", borrower, "isbns", skipped)
	}
	l.opts.Metrics.CopiesReturned(len(returned))
	l.logger.Info("books returned", "borrower", borrower, "copies", len(returned))
	return returned, nil
}

// returnTime never stamps a return before its borrow, even if the clock
// moved backwards in between.
func returnTime(now, borrowedAt time.Time) time.Time {
	if now.Before(borrowedAt) {
		return borrowedAt
	}
	return now
}
