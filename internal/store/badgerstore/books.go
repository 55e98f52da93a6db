package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// GetBook implements store.BookStore.
func (t *tx) GetBook(_ context.Context, isbn domain.ISBN) (*domain.Book, error) {
	var book domain.Book
	err := t.get(bookKey(isbn), &book)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound.WithMessagef("book %s not found", isbn)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", isbn, err)
	}
	return &book, nil
}

// ListBooks implements store.BookStore.
func (t *tx) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, error) {
	var books []*domain.Book

	if len(filter.ISBNs) > 0 {
		isbns := slices.Clone(filter.ISBNs)
		slices.Sort(isbns)
		for _, isbn := range slices.Compact(isbns) {
			book, err := t.GetBook(ctx, isbn)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			books = append(books, book)
		}
		return books, nil
	}

	err := t.scanValues([]byte(bookPrefix), func(val []byte) error {
		var b domain.Book
		if err := json.Unmarshal(val, &b); err != nil {
			return err
		}
		books = append(books, &b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	slices.SortFunc(books, func(a, b *domain.Book) int {
		return strings.Compare(string(a.ISBN), string(b.ISBN))
	})
	return books, nil
}

// CreateBook implements store.BookStore.
func (t *tx) CreateBook(_ context.Context, book *domain.Book) error {
	if !book.Consistent() {
		return store.ErrInvalidInput.WithMessagef("book %s: remain %d outside [0, %d]", book.ISBN, book.Remain, book.Stock)
	}

	key := bookKey(book.ISBN)
	exists, err := t.exists(key)
	if err != nil {
		return fmt.Errorf("check book %s: %w", book.ISBN, err)
	}
	if exists {
		return store.ErrAlreadyExists.WithMessagef("book %s already exists", book.ISBN)
	}
	return t.set(key, book)
}

// UpdateBook implements store.BookStore.
func (t *tx) UpdateBook(_ context.Context, book *domain.Book) error {
	if !book.Consistent() {
		return store.ErrInvalidInput.WithMessagef("book %s: remain %d outside [0, %d]", book.ISBN, book.Remain, book.Stock)
	}

	key := bookKey(book.ISBN)
	exists, err := t.exists(key)
	if err != nil {
		return fmt.Errorf("check book %s: %w", book.ISBN, err)
	}
	if !exists {
		return store.ErrNotFound.WithMessagef("book %s not found", book.ISBN)
	}
	return t.set(key, book)
}

// DeleteBook implements store.BookStore, removing the book's loans and
// returns along with their index entries.
func (t *tx) DeleteBook(_ context.Context, isbn domain.ISBN) error {
	key := bookKey(isbn)
	exists, err := t.exists(key)
	if err != nil {
		return fmt.Errorf("check book %s: %w", isbn, err)
	}
	if !exists {
		return store.ErrNotFound.WithMessagef("book %s not found", isbn)
	}

	for _, id := range t.scanKeys(indexPrefix(loanByISBNPrefix, string(isbn))) {
		var loan domain.LoanRecord
		if err := t.get(loanKey(id), &loan); err != nil {
			return fmt.Errorf("load loan %s: %w", id, err)
		}
		if err := t.deleteLoan(&loan); err != nil {
			return err
		}
	}

	for _, id := range t.scanKeys(indexPrefix(returnByISBNPrefix, string(isbn))) {
		var rec domain.ReturnRecord
		if err := t.get(returnKey(id), &rec); err != nil {
			return fmt.Errorf("load return %s: %w", id, err)
		}
		for _, k := range [][]byte{
			returnKey(rec.ID),
			indexKey(returnByBorrowerPrefix, string(rec.Borrower), rec.ID),
			indexKey(returnByISBNPrefix, string(rec.ISBN), rec.ID),
		} {
			if err := t.txn.Delete(k); err != nil {
				return fmt.Errorf("delete return %s: %w", rec.ID, err)
			}
		}
	}

	if err := t.txn.Delete(key); err != nil {
		return fmt.Errorf("delete book %s: %w", isbn, err)
	}
	return nil
}

// AdjustRemain implements store.BookStore.
func (t *tx) AdjustRemain(ctx context.Context, isbn domain.ISBN, delta int) error {
	book, err := t.GetBook(ctx, isbn)
	if err != nil {
		return err
	}
	next := book.Remain + delta
	if next < 0 || next > book.Stock {
		return store.ErrInsufficientRemain.WithMessagef("book %s: cannot adjust remain by %d", isbn, delta)
	}
	book.Remain = next
	return t.set(bookKey(isbn), book)
}
