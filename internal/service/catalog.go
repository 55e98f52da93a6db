package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/ledger"
	"github.com/books-manager/books-manager-server/internal/search"
	"github.com/books-manager/books-manager-server/internal/store"
	"github.com/books-manager/books-manager-server/internal/validation"
)

// CatalogService manages the book catalog and keeps the search index in
// step with the store.
type CatalogService struct {
	store    store.Store
	index    *search.CatalogIndex
	validate *validation.Validator
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store store.Store, index *search.CatalogIndex, validate *validation.Validator, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogService{
		store:    store,
		index:    index,
		validate: validate,
		logger:   logger.With("component", "catalog"),
	}
}

// AddBookRequest describes a new title. All copies start on the shelf.
type AddBookRequest struct {
	ISBN      string `json:"isbn" validate:"required,isbn"`
	Name      string `json:"name" validate:"required,min=1,max=50"`
	Author    string `json:"author" validate:"max=20"`
	Publisher string `json:"press" validate:"max=20"`
	Stock     int    `json:"stock" validate:"gte=0,lte=100"`
}

// UpdateBookRequest changes a title. Nil fields are left as is; a new stock
// keeps the copies on loan and adjusts remain around them.
type UpdateBookRequest struct {
	ISBN      string  `json:"isbn" validate:"required,isbn"`
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Author    *string `json:"author,omitempty" validate:"omitempty,max=20"`
	Publisher *string `json:"press,omitempty" validate:"omitempty,max=20"`
	Stock     *int    `json:"stock,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// SearchRequest matches books by partial title, ISBN digits or author.
// Empty fields match everything.
type SearchRequest struct {
	Name   string `json:"name" validate:"max=50"`
	ISBN   string `json:"isbn" validate:"max=13"`
	Author string `json:"author" validate:"max=20"`
}

// ListBooks returns the whole catalog ordered by ISBN.
func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	var books []*domain.Book
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		books, err = tx.ListBooks(ctx, store.BookFilter{})
		return err
	})
	if err != nil {
		return nil, storageFailure("list books", err)
	}
	return books, nil
}

// Search finds books through the index and reads their current counts from
// the store, best match first.
func (s *CatalogService) Search(ctx context.Context, req SearchRequest) ([]*domain.Book, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	res, err := s.index.Search(ctx, search.Query{Name: req.Name, ISBN: req.ISBN, Author: req.Author})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	if len(res.ISBNs) == 0 {
		return []*domain.Book{}, nil
	}

	var found []*domain.Book
	err = s.store.View(ctx, func(tx store.Tx) error {
		var err error
		found, err = tx.ListBooks(ctx, store.BookFilter{ISBNs: res.ISBNs})
		return err
	})
	if err != nil {
		return nil, storageFailure("list books", err)
	}

	byISBN := make(map[domain.ISBN]*domain.Book, len(found))
	for _, b := range found {
		byISBN[b.ISBN] = b
	}
	books := make([]*domain.Book, 0, len(found))
	for _, isbn := range res.ISBNs {
		// A book deleted after it was indexed is skipped.
		if b, ok := byISBN[isbn]; ok {
			books = append(books, b)
		}
	}
	return books, nil
}

// AddBook adds a title with remain equal to stock.
func (s *CatalogService) AddBook(ctx context.Context, req AddBookRequest) (*domain.Book, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	isbn, err := domain.ParseISBN(req.ISBN)
	if err != nil {
		return nil, err
	}
	name, err := domain.ParseBookName(req.Name)
	if err != nil {
		return nil, err
	}
	author, err := domain.ParseAuthor(req.Author)
	if err != nil {
		return nil, err
	}
	publisher, err := domain.ParsePublisher(req.Publisher)
	if err != nil {
		return nil, err
	}
	stock, err := domain.ParseStock(req.Stock)
	if err != nil {
		return nil, err
	}

	book := domain.NewBook(isbn, name, author, publisher, stock)
	err = s.store.Update(ctx, func(tx store.Tx) error {
		return tx.CreateBook(ctx, book)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, domainerrors.ErrBookAlreadyExists.WithDetails(map[string]string{"isbn": string(isbn)})
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeAddBookFailed, domainerrors.ErrAddBookFailed.Message)
	}

	s.reindex(book)
	s.logger.Info("book added", "isbn", book.ISBN, "stock", book.Stock)
	return book, nil
}

// DeleteBooks removes a batch of titles together with their loan history.
// Every ISBN must exist; otherwise nothing is deleted.
func (s *CatalogService) DeleteBooks(ctx context.Context, raw []string) error {
	isbns, err := domain.ParseISBNs(raw)
	if err != nil {
		return err
	}
	slices.Sort(isbns)
	isbns = slices.Compact(isbns)

	err = s.store.Update(ctx, func(tx store.Tx) error {
		existing, err := tx.ListBooks(ctx, store.BookFilter{ISBNs: isbns})
		if err != nil {
			return err
		}
		if len(existing) != len(isbns) {
			return domainerrors.ErrBookNotFound.WithDetails(ledger.ISBNDetails{ISBNs: missing(isbns, existing)})
		}
		for _, isbn := range isbns {
			if err := tx.DeleteBook(ctx, isbn); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.ErrBookNotFound.WithCause(err)
	}
	if err != nil {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return domainerrors.Wrap(err, domainerrors.CodeDeleteBookFailed, domainerrors.ErrDeleteBookFailed.Message)
	}

	if err := s.index.RemoveBooks(isbns); err != nil {
		s.logger.Warn("failed to remove books from index", "isbns", isbns, "error", err)
	}
	s.logger.Info("books deleted", "isbns", isbns)
	return nil
}

// UpdateBook changes metadata and, through ledger.Restock, the stock of a
// title in one unit of work.
func (s *CatalogService) UpdateBook(ctx context.Context, req UpdateBookRequest) (*domain.Book, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	isbn, err := domain.ParseISBN(req.ISBN)
	if err != nil {
		return nil, err
	}

	var (
		name      *domain.BookName
		author    *domain.Author
		publisher *domain.Publisher
		stock     *domain.Stock
	)
	if req.Name != nil {
		v, err := domain.ParseBookName(*req.Name)
		if err != nil {
			return nil, err
		}
		name = &v
	}
	if req.Author != nil {
		v, err := domain.ParseAuthor(*req.Author)
		if err != nil {
			return nil, err
		}
		author = &v
	}
	if req.Publisher != nil {
		v, err := domain.ParsePublisher(*req.Publisher)
		if err != nil {
			return nil, err
		}
		publisher = &v
	}
	if req.Stock != nil {
		v, err := domain.ParseStock(*req.Stock)
		if err != nil {
			return nil, err
		}
		stock = &v
	}

	var book *domain.Book
	err = s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if book, err = tx.GetBook(ctx, isbn); err != nil {
			return err
		}
		if name != nil {
			book.Name = *name
		}
		if author != nil {
			book.Author = *author
		}
		if publisher != nil {
			book.Publisher = *publisher
		}
		if stock != nil {
			if err := ledger.Restock(book, *stock); err != nil {
				return err
			}
		}
		return tx.UpdateBook(ctx, book)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.ErrBookNotFound.WithDetails(ledger.ISBNDetails{ISBNs: []domain.ISBN{isbn}})
	}
	if err != nil {
		return nil, storageFailure("update book", err)
	}

	s.reindex(book)
	s.logger.Info("book updated", "isbn", book.ISBN, "stock", book.Stock, "remain", book.Remain)
	return book, nil
}

// RebuildIndex reloads the search index from the store.
func (s *CatalogService) RebuildIndex(ctx context.Context) error {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return err
	}
	return s.index.Rebuild(books)
}

// reindex refreshes one book in the index. The store already committed, so
// an index failure is logged and the next rebuild repairs it.
func (s *CatalogService) reindex(book *domain.Book) {
	if err := s.index.IndexBook(book); err != nil {
		s.logger.Warn("failed to index book", "isbn", book.ISBN, "error", err)
	}
}

func missing(want []domain.ISBN, found []*domain.Book) []domain.ISBN {
	have := make(map[domain.ISBN]bool, len(found))
	for _, b := range found {
		have[b.ISBN] = true
	}
	var out []domain.ISBN
	for _, isbn := range want {
		if !have[isbn] {
			out = append(out, isbn)
		}
	}
	return out
}
