// Package store defines the persistence interface for the books-manager server.
//
// All reads and writes happen inside a unit of work obtained from Store.View or
// Store.Update. An Update unit is atomic and isolated: either every write made
// through its Tx commits or none does, and two Update units that touch the same
// book are serialized by the backend.
package store

import (
	"context"

	"github.com/books-manager/books-manager-server/internal/domain"
)

// Store is a transactional persistence backend.
type Store interface {
	// View runs fn in a read-only unit of work.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Update runs fn in a read-write unit of work. If fn returns an error the
	// unit is rolled back and that error is returned unchanged. A backend
	// may run fn more than once when it retries a conflicting commit.
	Update(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	BookStore
	LoanStore
	UserStore
}

// BookStore holds per-ISBN inventory records.
type BookStore interface {
	GetBook(ctx context.Context, isbn domain.ISBN) (*domain.Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]*domain.Book, error)
	CreateBook(ctx context.Context, book *domain.Book) error
	// UpdateBook replaces metadata and copy counts. The counts must satisfy
	// 0 <= remain <= stock or ErrInvalidInput is returned.
	UpdateBook(ctx context.Context, book *domain.Book) error
	// DeleteBook removes a book together with its active and completed loans.
	DeleteBook(ctx context.Context, isbn domain.ISBN) error
	// AdjustRemain adds delta to remain only if the result stays within
	// [0, stock]; otherwise it returns ErrInsufficientRemain and changes nothing.
	AdjustRemain(ctx context.Context, isbn domain.ISBN, delta int) error
}

// LoanStore holds active and completed loans.
type LoanStore interface {
	CreateLoan(ctx context.Context, loan *domain.LoanRecord) error
	// ListLoans returns active loans ordered oldest first.
	ListLoans(ctx context.Context, filter LoanFilter) ([]*domain.LoanRecord, error)
	DeleteLoan(ctx context.Context, id string) error
	// CountLoansByISBN returns the number of active loans per book.
	CountLoansByISBN(ctx context.Context) (map[domain.ISBN]int, error)

	CreateReturn(ctx context.Context, rec *domain.ReturnRecord) error
	// ListReturns returns completed loans ordered by return time, oldest first.
	ListReturns(ctx context.Context, filter ReturnFilter) ([]*domain.ReturnRecord, error)
}

// UserStore holds member accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, email domain.Email) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// BookFilter narrows ListBooks. The zero value selects every book.
// Results are ordered by ISBN.
type BookFilter struct {
	ISBNs []domain.ISBN
}

// LoanFilter narrows ListLoans. Empty fields do not filter.
type LoanFilter struct {
	Borrower domain.Email
	ISBNs    []domain.ISBN
}

// ReturnFilter narrows ListReturns. Empty fields do not filter.
type ReturnFilter struct {
	Borrower domain.Email
	ISBN     domain.ISBN
}
