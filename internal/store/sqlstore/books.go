package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

const tableBooks = "books"

type bookRow struct {
	ISBN      string `db:"isbn"`
	Name      string `db:"name"`
	Author    string `db:"author"`
	Publisher string `db:"publisher"`
	Stock     int    `db:"stock"`
	Remain    int    `db:"remain"`
}

func (r *bookRow) toDomain() *domain.Book {
	return &domain.Book{
		ISBN:      domain.ISBN(r.ISBN),
		Name:      domain.BookName(r.Name),
		Author:    domain.Author(r.Author),
		Publisher: domain.Publisher(r.Publisher),
		Stock:     r.Stock,
		Remain:    r.Remain,
	}
}

var bookColumns = []any{"isbn", "name", "author", "publisher", "stock", "remain"}

func (t *tx) selectBooks() *goqu.SelectDataset {
	ds := t.dialect.From(tableBooks).Select(bookColumns...).Prepared(true)
	if t.forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}
	return ds
}

// GetBook implements store.BookStore.
func (t *tx) GetBook(ctx context.Context, isbn domain.ISBN) (*domain.Book, error) {
	var row bookRow
	err := t.selectOne(ctx, &row, t.selectBooks().Where(goqu.C("isbn").Eq(string(isbn))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessagef("book %s not found", isbn)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", isbn, err)
	}
	return row.toDomain(), nil
}

// ListBooks implements store.BookStore.
func (t *tx) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, error) {
	ds := t.selectBooks().Order(goqu.C("isbn").Asc())
	if len(filter.ISBNs) > 0 {
		ds = ds.Where(goqu.C("isbn").In(isbnStrings(filter.ISBNs)))
	}

	var rows []bookRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	books := make([]*domain.Book, 0, len(rows))
	for i := range rows {
		books = append(books, rows[i].toDomain())
	}
	return books, nil
}

// CreateBook implements store.BookStore.
func (t *tx) CreateBook(ctx context.Context, book *domain.Book) error {
	if !book.Consistent() {
		return store.ErrInvalidInput.WithMessagef("book %s: remain %d outside [0, %d]", book.ISBN, book.Remain, book.Stock)
	}

	ds := t.dialect.Insert(tableBooks).Prepared(true).Rows(goqu.Record{
		"isbn":      string(book.ISBN),
		"name":      string(book.Name),
		"author":    string(book.Author),
		"publisher": string(book.Publisher),
		"stock":     book.Stock,
		"remain":    book.Remain,
	})
	if _, err := t.exec(ctx, ds); err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessagef("book %s already exists", book.ISBN)
		}
		return fmt.Errorf("insert book %s: %w", book.ISBN, err)
	}
	return nil
}

// UpdateBook implements store.BookStore.
func (t *tx) UpdateBook(ctx context.Context, book *domain.Book) error {
	if !book.Consistent() {
		return store.ErrInvalidInput.WithMessagef("book %s: remain %d outside [0, %d]", book.ISBN, book.Remain, book.Stock)
	}

	ds := t.dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{
			"name":      string(book.Name),
			"author":    string(book.Author),
			"publisher": string(book.Publisher),
			"stock":     book.Stock,
			"remain":    book.Remain,
		}).
		Where(goqu.C("isbn").Eq(string(book.ISBN)))

	n, err := t.exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("update book %s: %w", book.ISBN, err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessagef("book %s not found", book.ISBN)
	}
	return nil
}

// DeleteBook implements store.BookStore. Loans and returns go with it
// through ON DELETE CASCADE.
func (t *tx) DeleteBook(ctx context.Context, isbn domain.ISBN) error {
	ds := t.dialect.Delete(tableBooks).Prepared(true).Where(goqu.C("isbn").Eq(string(isbn)))
	n, err := t.exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", isbn, err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessagef("book %s not found", isbn)
	}
	return nil
}

// AdjustRemain implements store.BookStore with a single conditional UPDATE,
// so the bounds check and the write cannot be separated by another writer.
func (t *tx) AdjustRemain(ctx context.Context, isbn domain.ISBN, delta int) error {
	ds := t.dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{"remain": goqu.L("remain + ?", delta)}).
		Where(
			goqu.C("isbn").Eq(string(isbn)),
			goqu.L("remain + ? >= 0", delta),
			goqu.L("remain + ? <= stock", delta),
		)

	n, err := t.exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("adjust remain of %s by %d: %w", isbn, delta, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := t.GetBook(ctx, isbn); err != nil {
		return err
	}
	return store.ErrInsufficientRemain.WithMessagef("book %s: cannot adjust remain by %d", isbn, delta)
}

func isbnStrings(isbns []domain.ISBN) []string {
	out := make([]string, len(isbns))
	for i, isbn := range isbns {
		out[i] = string(isbn)
	}
	return out
}
