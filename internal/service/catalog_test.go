package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/ledger"
	"github.com/books-manager/books-manager-server/internal/store/storetest"
)

func addBook(t *testing.T, env *testEnv, isbn, name, author string, stock int) *domain.Book {
	t.Helper()
	book, err := env.catalog.AddBook(t.Context(), AddBookRequest{ISBN: isbn, Name: name, Author: author, Publisher: "Press", Stock: stock})
	require.NoError(t, err)
	return book
}

func newLedger(t *testing.T, env *testEnv) *ledger.Ledger {
	t.Helper()
	return ledger.New(env.store, env.users, ledger.Options{})
}

func isbnsOf(books []*domain.Book) []domain.ISBN {
	out := make([]domain.ISBN, len(books))
	for i, b := range books {
		out[i] = b.ISBN
	}
	return out
}

func TestCatalogService_AddBook(t *testing.T) {
	env := setupTestEnv(t)

	book := addBook(t, env, "9787111213826", "The Go Programming Language", "Alan Donovan", 5)
	assert.Equal(t, 5, book.Stock)
	assert.Equal(t, 5, book.Remain)

	_, err := env.catalog.AddBook(t.Context(), AddBookRequest{ISBN: "9787111213826", Name: "Again", Stock: 1})
	assert.ErrorIs(t, err, domainerrors.ErrBookAlreadyExists)

	count, err := env.index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestCatalogService_AddBook_Invalid(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		req  AddBookRequest
		want error
	}{
		{"short isbn", AddBookRequest{ISBN: "978711121382", Name: "Go", Stock: 1}, domainerrors.ErrInvalidISBN},
		{"empty name", AddBookRequest{ISBN: "9787111213826", Stock: 1}, domainerrors.ErrInvalidData},
		{"stock over limit", AddBookRequest{ISBN: "9787111213826", Name: "Go", Stock: 101}, domainerrors.ErrInvalidData},
		{"negative stock", AddBookRequest{ISBN: "9787111213826", Name: "Go", Stock: -1}, domainerrors.ErrInvalidData},
		{"long author", AddBookRequest{ISBN: "9787111213826", Name: "Go", Author: "An Author With A Very Long Name", Stock: 1}, domainerrors.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.AddBook(t.Context(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCatalogService_ListBooks(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9787115428028", "Concurrency in Go", "Katherine", 2)
	addBook(t, env, "9787111213826", "The Go Programming Language", "Alan Donovan", 5)

	books, err := env.catalog.ListBooks(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []domain.ISBN{"9787111213826", "9787115428028"}, isbnsOf(books))
}

func TestCatalogService_Search(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9787111213826", "The Go Programming Language", "Alan Donovan", 5)
	addBook(t, env, "9787115428028", "Concurrency in Go", "Katherine", 2)
	addBook(t, env, "9780261103344", "The Hobbit", "Tolkien", 1)

	books, err := env.catalog.Search(t.Context(), SearchRequest{Name: "go"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ISBN{"9787111213826", "9787115428028"}, isbnsOf(books))

	books, err = env.catalog.Search(t.Context(), SearchRequest{Author: "tolkien", ISBN: "0261"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ISBN{"9780261103344"}, isbnsOf(books))

	books, err = env.catalog.Search(t.Context(), SearchRequest{Name: "cookbook"})
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestCatalogService_Search_ReturnsCurrentCounts(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9780261103344", "The Hobbit", "Tolkien", 2)
	reader := storetest.SeedUser(t, env.store, "reader@example.com")

	_, err := newLedger(t, env).Borrow(t.Context(), reader.Email, []domain.ISBN{"9780261103344"})
	require.NoError(t, err)

	books, err := env.catalog.Search(t.Context(), SearchRequest{Name: "hobbit"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 1, books[0].Remain)
}

func TestCatalogService_DeleteBooks(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9787111213826", "The Go Programming Language", "Alan Donovan", 5)
	addBook(t, env, "9787115428028", "Concurrency in Go", "Katherine", 2)
	addBook(t, env, "9780261103344", "The Hobbit", "Tolkien", 1)
	reader := storetest.SeedUser(t, env.store, "reader@example.com")

	l := newLedger(t, env)
	_, err := l.Borrow(t.Context(), reader.Email, []domain.ISBN{"9787111213826"})
	require.NoError(t, err)

	err = env.catalog.DeleteBooks(t.Context(), []string{"9787111213826", "9787115428028", "9787115428028"})
	require.NoError(t, err)

	books, err := env.catalog.ListBooks(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []domain.ISBN{"9780261103344"}, isbnsOf(books))

	active, err := l.ListActive(t.Context(), reader.Email)
	require.NoError(t, err)
	assert.Empty(t, active, "loans of deleted books go with them")

	found, err := env.catalog.Search(t.Context(), SearchRequest{Name: "go"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCatalogService_DeleteBooks_AllOrNothing(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9787111213826", "The Go Programming Language", "Alan Donovan", 5)

	err := env.catalog.DeleteBooks(t.Context(), []string{"9787111213826", "9780000000000"})
	require.ErrorIs(t, err, domainerrors.ErrBookNotFound)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ledger.ISBNDetails{ISBNs: []domain.ISBN{"9780000000000"}}, domainErr.Details)

	books, err := env.catalog.ListBooks(t.Context())
	require.NoError(t, err)
	assert.Len(t, books, 1)

	assert.ErrorIs(t, env.catalog.DeleteBooks(t.Context(), nil), domainerrors.ErrEmptyBookList)
	assert.ErrorIs(t, env.catalog.DeleteBooks(t.Context(), []string{"123"}), domainerrors.ErrInvalidISBN)
}

func TestCatalogService_UpdateBook(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9780261103344", "The Hobbit", "Tolkien", 3)
	reader := storetest.SeedUser(t, env.store, "reader@example.com")

	_, err := newLedger(t, env).Borrow(t.Context(), reader.Email, []domain.ISBN{"9780261103344", "9780261103344"})
	require.NoError(t, err)

	name, stock := "The Hobbit, Illustrated", 5
	book, err := env.catalog.UpdateBook(t.Context(), UpdateBookRequest{ISBN: "9780261103344", Name: &name, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, domain.BookName(name), book.Name)
	assert.Equal(t, domain.Author("Tolkien"), book.Author, "untouched")
	assert.Equal(t, 5, book.Stock)
	assert.Equal(t, 3, book.Remain, "two copies stay on loan")

	found, err := env.catalog.Search(t.Context(), SearchRequest{Name: "illustrated"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ISBN{"9780261103344"}, isbnsOf(found))
}

func TestCatalogService_UpdateBook_StockBelowLoans(t *testing.T) {
	env := setupTestEnv(t)
	addBook(t, env, "9780261103344", "The Hobbit", "Tolkien", 3)
	reader := storetest.SeedUser(t, env.store, "reader@example.com")

	_, err := newLedger(t, env).Borrow(t.Context(), reader.Email, []domain.ISBN{"9780261103344", "9780261103344"})
	require.NoError(t, err)

	name, stock := "Renamed", 1
	_, err = env.catalog.UpdateBook(t.Context(), UpdateBookRequest{ISBN: "9780261103344", Name: &name, Stock: &stock})
	require.ErrorIs(t, err, domainerrors.ErrStockTooLow)

	books, err := env.catalog.ListBooks(t.Context())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, domain.BookName("The Hobbit"), books[0].Name, "rename rolled back with the stock change")
	assert.Equal(t, 3, books[0].Stock)
	assert.Equal(t, 1, books[0].Remain)
}

func TestCatalogService_UpdateBook_Missing(t *testing.T) {
	env := setupTestEnv(t)

	name := "Ghost"
	_, err := env.catalog.UpdateBook(t.Context(), UpdateBookRequest{ISBN: "9780000000000", Name: &name})
	assert.ErrorIs(t, err, domainerrors.ErrBookNotFound)
}

func TestCatalogService_RebuildIndex(t *testing.T) {
	env := setupTestEnv(t)
	storetest.SeedBook(t, env.store, "9780261103344", 1)

	// Seeded straight into the store, so not yet searchable.
	found, err := env.catalog.Search(t.Context(), SearchRequest{ISBN: "9780261103344"})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, env.catalog.RebuildIndex(t.Context()))

	found, err = env.catalog.Search(t.Context(), SearchRequest{ISBN: "9780261103344"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
