// Package storetest holds the behavioral test suite every store.Store
// backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// Opener returns a fresh, empty store. The store is closed by the suite.
type Opener func(t *testing.T) store.Store

// Run executes the suite against the backend returned by open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"BookCRUD", testBookCRUD},
		{"CreateBookDuplicate", testCreateBookDuplicate},
		{"UpdateBookRejectsInconsistentCounts", testUpdateBookRejectsInconsistentCounts},
		{"AdjustRemainBounds", testAdjustRemainBounds},
		{"ListBooksFilterAndOrder", testListBooksFilterAndOrder},
		{"LoansFilterAndOrder", testLoansFilterAndOrder},
		{"ReturnsFilterAndOrder", testReturnsFilterAndOrder},
		{"CountLoansByISBN", testCountLoansByISBN},
		{"DeleteBookCascades", testDeleteBookCascades},
		{"UserCRUD", testUserCRUD},
		{"UpdateRollsBackOnError", testUpdateRollsBackOnError},
		{"ConcurrentLastCopy", testConcurrentLastCopy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var baseTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// SeedUser stores an enabled member account.
func SeedUser(t *testing.T, s store.Store, email domain.Email) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:        email,
		Username:     "reader",
		PasswordHash: "hash",
		StudentID:    "202400000001",
		Sex:          domain.SexUnknown,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusEnabled,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u
}

// SeedBook stores a fully stocked book.
func SeedBook(t *testing.T, s store.Store, isbn domain.ISBN, stock int) *domain.Book {
	t.Helper()
	b := domain.NewBook(isbn, domain.BookName("Book "+isbn), "Author", "Press", domain.Stock(stock))
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		return tx.CreateBook(context.Background(), b)
	}))
	return b
}

func getBook(t *testing.T, s store.Store, isbn domain.ISBN) *domain.Book {
	t.Helper()
	var book *domain.Book
	require.NoError(t, s.View(context.Background(), func(tx store.Tx) error {
		var err error
		book, err = tx.GetBook(context.Background(), isbn)
		return err
	}))
	return book
}

func testBookCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedBook(t, s, "9780000000001", 3)

	got := getBook(t, s, "9780000000001")
	assert.Equal(t, domain.BookName("Book 9780000000001"), got.Name)
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, 3, got.Remain)

	got.Name = "Renamed"
	got.Stock = 5
	got.Remain = 4
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateBook(ctx, got)
	}))

	again := getBook(t, s, "9780000000001")
	assert.Equal(t, domain.BookName("Renamed"), again.Name)
	assert.Equal(t, 5, again.Stock)
	assert.Equal(t, 4, again.Remain)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteBook(ctx, "9780000000001")
	}))

	err := s.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetBook(ctx, "9780000000001")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteBook(ctx, "9780000000001")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateBook(ctx, got)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCreateBookDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedBook(t, s, "9780000000002", 1)

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.CreateBook(ctx, domain.NewBook("9780000000002", "Other", "", "", 2))
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testUpdateBookRejectsInconsistentCounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := SeedBook(t, s, "9780000000003", 2)

	book.Remain = 3
	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateBook(ctx, book)
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	got := getBook(t, s, "9780000000003")
	assert.Equal(t, 2, got.Remain)
}

func testAdjustRemainBounds(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedBook(t, s, "9780000000004", 2)

	adjust := func(delta int) error {
		return s.Update(ctx, func(tx store.Tx) error {
			return tx.AdjustRemain(ctx, "9780000000004", delta)
		})
	}

	assert.ErrorIs(t, adjust(1), store.ErrInsufficientRemain, "remain may not exceed stock")
	require.NoError(t, adjust(-2))
	assert.Equal(t, 0, getBook(t, s, "9780000000004").Remain)

	assert.ErrorIs(t, adjust(-1), store.ErrInsufficientRemain, "remain may not go negative")
	assert.Equal(t, 0, getBook(t, s, "9780000000004").Remain)

	require.NoError(t, adjust(1))
	assert.Equal(t, 1, getBook(t, s, "9780000000004").Remain)

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.AdjustRemain(ctx, "9789999999999", -1)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListBooksFilterAndOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedBook(t, s, "9780000000030", 1)
	SeedBook(t, s, "9780000000010", 1)
	SeedBook(t, s, "9780000000020", 1)

	var all, some []*domain.Book
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		if all, err = tx.ListBooks(ctx, store.BookFilter{}); err != nil {
			return err
		}
		some, err = tx.ListBooks(ctx, store.BookFilter{ISBNs: []domain.ISBN{"9780000000030", "9780000000010", "9789999999999"}})
		return err
	}))

	require.Len(t, all, 3)
	assert.Equal(t, domain.ISBN("9780000000010"), all[0].ISBN)
	assert.Equal(t, domain.ISBN("9780000000020"), all[1].ISBN)
	assert.Equal(t, domain.ISBN("9780000000030"), all[2].ISBN)

	require.Len(t, some, 2)
	assert.Equal(t, domain.ISBN("9780000000010"), some[0].ISBN)
	assert.Equal(t, domain.ISBN("9780000000030"), some[1].ISBN)
}

func createLoans(t *testing.T, s store.Store, loans ...*domain.LoanRecord) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, l := range loans {
			if err := tx.CreateLoan(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}))
}

func loan(id string, isbn domain.ISBN, who domain.Email, offset time.Duration) *domain.LoanRecord {
	return &domain.LoanRecord{
		ID:         id,
		ISBN:       isbn,
		Borrower:   who,
		BookName:   domain.BookName("Book " + isbn),
		BorrowedAt: baseTime.Add(offset),
	}
}

func testLoansFilterAndOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedUser(t, s, "a@example.com")
	SeedUser(t, s, "b@example.com")
	SeedBook(t, s, "9780000000101", 5)
	SeedBook(t, s, "9780000000102", 5)

	createLoans(t, s,
		loan("loan-3", "9780000000101", "a@example.com", 3*time.Minute),
		loan("loan-1", "9780000000101", "a@example.com", time.Minute),
		loan("loan-2", "9780000000102", "a@example.com", 2*time.Minute),
		loan("loan-4", "9780000000101", "b@example.com", 4*time.Minute),
	)

	var forA, forAOne []*domain.LoanRecord
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		if forA, err = tx.ListLoans(ctx, store.LoanFilter{Borrower: "a@example.com"}); err != nil {
			return err
		}
		forAOne, err = tx.ListLoans(ctx, store.LoanFilter{Borrower: "a@example.com", ISBNs: []domain.ISBN{"9780000000101"}})
		return err
	}))

	require.Len(t, forA, 3)
	assert.Equal(t, []string{"loan-1", "loan-2", "loan-3"}, []string{forA[0].ID, forA[1].ID, forA[2].ID})
	assert.True(t, forA[0].BorrowedAt.Equal(baseTime.Add(time.Minute)))
	assert.Equal(t, domain.BookName("Book 9780000000101"), forA[0].BookName)

	require.Len(t, forAOne, 2)
	assert.Equal(t, "loan-1", forAOne[0].ID)
	assert.Equal(t, "loan-3", forAOne[1].ID)

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteLoan(ctx, "loan-1")
	}))
	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteLoan(ctx, "loan-1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testReturnsFilterAndOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedUser(t, s, "a@example.com")
	SeedBook(t, s, "9780000000201", 5)
	SeedBook(t, s, "9780000000202", 5)

	recs := []*domain.ReturnRecord{
		loan("r-2", "9780000000201", "a@example.com", 0).Complete(baseTime.Add(2 * time.Hour)),
		loan("r-1", "9780000000202", "a@example.com", 0).Complete(baseTime.Add(time.Hour)),
	}
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, r := range recs {
			if err := tx.CreateReturn(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	var all, one []*domain.ReturnRecord
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		if all, err = tx.ListReturns(ctx, store.ReturnFilter{Borrower: "a@example.com"}); err != nil {
			return err
		}
		one, err = tx.ListReturns(ctx, store.ReturnFilter{ISBN: "9780000000201"})
		return err
	}))

	require.Len(t, all, 2)
	assert.Equal(t, "r-1", all[0].ID)
	assert.Equal(t, "r-2", all[1].ID)
	assert.True(t, all[0].ReturnedAt.Equal(baseTime.Add(time.Hour)))
	assert.True(t, all[0].BorrowedAt.Equal(baseTime))

	require.Len(t, one, 1)
	assert.Equal(t, "r-2", one[0].ID)
}

func testCountLoansByISBN(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedUser(t, s, "a@example.com")
	SeedBook(t, s, "9780000000301", 5)
	SeedBook(t, s, "9780000000302", 5)
	SeedBook(t, s, "9780000000303", 5)

	createLoans(t, s,
		loan("l-1", "9780000000301", "a@example.com", 0),
		loan("l-2", "9780000000301", "a@example.com", time.Second),
		loan("l-3", "9780000000302", "a@example.com", 0),
	)

	var counts map[domain.ISBN]int
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		counts, err = tx.CountLoansByISBN(ctx)
		return err
	}))

	assert.Equal(t, map[domain.ISBN]int{"9780000000301": 2, "9780000000302": 1}, counts)
}

func testDeleteBookCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedUser(t, s, "a@example.com")
	SeedBook(t, s, "9780000000401", 3)
	SeedBook(t, s, "9780000000402", 3)

	createLoans(t, s,
		loan("l-1", "9780000000401", "a@example.com", 0),
		loan("l-2", "9780000000402", "a@example.com", 0),
	)
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.CreateReturn(ctx, loan("r-1", "9780000000401", "a@example.com", 0).Complete(baseTime.Add(time.Hour)))
	}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteBook(ctx, "9780000000401")
	}))

	var loans []*domain.LoanRecord
	var returns []*domain.ReturnRecord
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		if loans, err = tx.ListLoans(ctx, store.LoanFilter{Borrower: "a@example.com"}); err != nil {
			return err
		}
		returns, err = tx.ListReturns(ctx, store.ReturnFilter{Borrower: "a@example.com"})
		return err
	}))

	require.Len(t, loans, 1)
	assert.Equal(t, "l-2", loans[0].ID)
	assert.Empty(t, returns)
}

func testUserCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := SeedUser(t, s, "reader@example.com")

	err := s.Update(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	u.Status = domain.UserStatusDisabled
	u.Role = domain.RoleAdmin
	u.Age = 30
	u.UpdatedAt = baseTime.Add(time.Hour)
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateUser(ctx, u)
	}))

	var got *domain.User
	var all []*domain.User
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		if got, err = tx.GetUser(ctx, "reader@example.com"); err != nil {
			return err
		}
		all, err = tx.ListUsers(ctx)
		return err
	}))

	assert.Equal(t, domain.UserStatusDisabled, got.Status)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, domain.Age(30), got.Age)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, got.CreatedAt.Equal(baseTime))
	assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Hour)))
	assert.Len(t, all, 1)

	err = s.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetUser(ctx, "nobody@example.com")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

var errBoom = errors.New("boom")

func testUpdateRollsBackOnError(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedUser(t, s, "a@example.com")
	SeedBook(t, s, "9780000000501", 2)

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.AdjustRemain(ctx, "9780000000501", -1); err != nil {
			return err
		}
		if err := tx.CreateLoan(ctx, loan("l-1", "9780000000501", "a@example.com", 0)); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 2, getBook(t, s, "9780000000501").Remain)

	var loans []*domain.LoanRecord
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, store.LoanFilter{})
		return err
	}))
	assert.Empty(t, loans)
}

func testConcurrentLastCopy(t *testing.T, s store.Store) {
	ctx := context.Background()
	const (
		stock   = 3
		workers = 12
	)
	SeedUser(t, s, "a@example.com")
	SeedBook(t, s, "9780000000601", stock)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, func(tx store.Tx) error {
				book, err := tx.GetBook(ctx, "9780000000601")
				if err != nil {
					return err
				}
				if book.Remain < 1 {
					return store.ErrInsufficientRemain
				}
				if err := tx.AdjustRemain(ctx, book.ISBN, -1); err != nil {
					return err
				}
				return tx.CreateLoan(ctx, loan(fmt.Sprintf("l-%d", i), book.ISBN, "a@example.com", time.Duration(i)*time.Second))
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, successes)
	assert.Equal(t, 0, getBook(t, s, "9780000000601").Remain)

	var loans []*domain.LoanRecord
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, store.LoanFilter{})
		return err
	}))
	assert.Len(t, loans, stock)
}
