package ledger

import (
	"context"
	"errors"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// Restock applies newStock to book, keeping the number of lent copies.
// It fails with ErrStockTooLow and leaves book untouched when newStock is
// below that number.
func Restock(book *domain.Book, newStock domain.Stock) error {
	borrowed := book.Borrowed()
	if !book.Restock(newStock) {
		return ErrStockTooLow.WithDetails(StockDetails{Borrowed: borrowed, Requested: int(newStock)})
	}
	return nil
}

// UpdateStock sets the stock of a book. remain becomes newStock minus the
// copies currently lent.
func (l *Ledger) UpdateStock(ctx context.Context, isbn domain.ISBN, newStock domain.Stock) (*domain.Book, error) {
	var updated *domain.Book
	err := l.store.Update(ctx, func(tx store.Tx) error {
		book, err := tx.GetBook(ctx, isbn)
		if err != nil {
			return err
		}
		if err := Restock(book, newStock); err != nil {
			return err
		}
		updated = book
		return tx.UpdateBook(ctx, book)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBookNotFound.WithCause(err)
	}
	if err != nil {
		return nil, storageFailure(err)
	}

	l.logger.Info("stock updated", "isbn", isbn, "stock", updated.Stock, "remain", updated.Remain)
	return updated, nil
}
