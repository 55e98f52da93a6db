package ledger

import (
	"context"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// CheckAvailability verifies that every ISBN of the batch exists and has
// at least as many copies on the shelf as it occurs in the batch. It reads
// through tx so that a caller inside an Update unit decides on the same
// state it then writes.
func CheckAvailability(ctx context.Context, tx store.BookStore, isbns []domain.ISBN) (map[domain.ISBN]*domain.Book, error) {
	if len(isbns) == 0 {
		return nil, ErrEmptyBatch
	}

	distinct, counts := countISBNs(isbns)
	books, err := tx.ListBooks(ctx, store.BookFilter{ISBNs: distinct})
	if err != nil {
		return nil, storageFailure(err)
	}

	byISBN := make(map[domain.ISBN]*domain.Book, len(books))
	for _, b := range books {
		byISBN[b.ISBN] = b
	}

	var short []domain.ISBN
	for _, isbn := range distinct {
		b, ok := byISBN[isbn]
		if !ok || b.Remain < counts[isbn] {
			short = append(short, isbn)
		}
	}
	if len(short) > 0 {
		return nil, ErrUnavailable.WithDetails(ISBNDetails{ISBNs: short})
	}
	return byISBN, nil
}

// Check runs CheckAvailability in a read-only unit. The answer may be stale
// by the time a later Borrow runs; Borrow checks again.
func (l *Ledger) Check(ctx context.Context, isbns []domain.ISBN) error {
	err := l.store.View(ctx, func(tx store.Tx) error {
		_, err := CheckAvailability(ctx, tx, isbns)
		return err
	})
	return storageFailure(err)
}
