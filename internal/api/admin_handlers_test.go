package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	ts := setupTestServer(t)
	reader := ts.readerToken(t)

	calls := []struct {
		name string
		call func() int
	}{
		{"list users", func() int {
			return ts.api.Get(BasePath+"/admin/user/list", tokenHeader(reader)).Code
		}},
		{"add book", func() int {
			return ts.api.Post(BasePath+"/admin/book/add", tokenHeader(reader), map[string]any{"isbn": hobbit, "name": "The Hobbit", "stock": 1}).Code
		}},
		{"delete books", func() int {
			return ts.api.Post(BasePath+"/admin/book/delete", tokenHeader(reader), map[string]any{"isbns": []string{hobbit}}).Code
		}},
		{"stock", func() int {
			return ts.api.Post(BasePath+"/admin/book/stock", tokenHeader(reader), map[string]any{"isbn": hobbit, "stock": 3}).Code
		}},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, http.StatusForbidden, c.call())
		})
	}

	resp := ts.api.Get(BasePath+"/admin/user/list", tokenHeader(reader))
	assertFailure(t, resp, domainerrors.CodeNotAdmin)
}

func TestAdminListUsers(t *testing.T) {
	ts := setupTestServer(t)
	ts.readerToken(t)
	admin := ts.adminToken(t)

	resp := ts.api.Get(BasePath+"/admin/user/list", tokenHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code)

	var out UserListResponse
	decodeData(t, resp, &out)
	require.Len(t, out.Items, 2)

	emails := []string{out.Items[0].Email, out.Items[1].Email}
	assert.ElementsMatch(t, []string{adminEmail, readerEmail}, emails)
}

func TestAdminUpdateUser_Role(t *testing.T) {
	ts := setupTestServer(t)
	reader := ts.readerToken(t)
	admin := ts.adminToken(t)

	resp := ts.api.Post(BasePath+"/admin/user/update", tokenHeader(admin), map[string]any{
		"email": readerEmail,
		"role":  "admin",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var info UserInfo
	decodeData(t, resp, &info)
	assert.Equal(t, "admin", info.Roles)

	resp = ts.api.Get(BasePath+"/admin/user/list", tokenHeader(reader))
	assert.Equal(t, http.StatusOK, resp.Code, "role is read fresh on every request")

	resp = ts.api.Post(BasePath+"/admin/user/update", tokenHeader(admin), map[string]any{"email": "ghost@example.com", "role": "user"})
	assertFailure(t, resp, domainerrors.CodeUserNotFound)
}

func TestAdminAddBook_Duplicate(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.adminToken(t)
	ts.addBook(t, admin, hobbit, "The Hobbit", 1)

	resp := ts.api.Post(BasePath+"/admin/book/add", tokenHeader(admin), map[string]any{"isbn": hobbit, "name": "Again", "stock": 1})
	assertFailure(t, resp, domainerrors.CodeBookAlreadyExists)

	resp = ts.api.Post(BasePath+"/admin/book/add", tokenHeader(admin), map[string]any{"isbn": "97802611", "name": "Short", "stock": 1})
	assertFailure(t, resp, domainerrors.CodeInvalidISBN)
}

func TestAdminDeleteBooks(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.adminToken(t)
	ts.addBook(t, admin, hobbit, "The Hobbit", 1)
	ts.addBook(t, admin, gopl, "The Go Programming Language", 1)

	resp := ts.api.Post(BasePath+"/admin/book/delete", tokenHeader(admin), map[string]any{"isbns": []string{hobbit, "9780000000000"}})
	env := assertFailure(t, resp, domainerrors.CodeBookNotFound)
	assert.Contains(t, string(env.Details), "9780000000000")
	assert.Len(t, ts.listBooks(t, admin), 2)

	resp = ts.api.Post(BasePath+"/admin/book/delete", tokenHeader(admin), map[string]any{"isbns": []string{hobbit}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	books := ts.listBooks(t, admin)
	assert.NotContains(t, books, hobbit)
	assert.Contains(t, books, gopl)
}

func TestAdminUpdateBook(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.adminToken(t)
	ts.addBook(t, admin, hobbit, "The Hobbit", 2)
	reader := ts.readerToken(t)

	resp := ts.api.Post(BasePath+"/book/borrow", tokenHeader(reader), map[string]any{"isbns": []string{hobbit}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post(BasePath+"/admin/book/update", tokenHeader(admin), map[string]any{
		"isbn":  hobbit,
		"press": "Allen & Unwin",
		"stock": 4,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var book BookResponse
	decodeData(t, resp, &book)
	assert.Equal(t, "The Hobbit", book.Name)
	assert.Equal(t, "Allen & Unwin", book.Press)
	assert.Equal(t, 4, book.Stock)
	assert.Equal(t, 3, book.Remain)

	resp = ts.api.Post(BasePath+"/admin/book/update", tokenHeader(admin), map[string]any{"isbn": hobbit, "stock": 0})
	assertFailure(t, resp, domainerrors.CodeStockTooLow)
}

func TestAdminUpdateStock(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.adminToken(t)
	ts.addBook(t, admin, hobbit, "The Hobbit", 3)
	reader := ts.readerToken(t)

	resp := ts.api.Post(BasePath+"/book/borrow", tokenHeader(reader), map[string]any{"isbns": []string{hobbit, hobbit}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post(BasePath+"/admin/book/stock", tokenHeader(admin), map[string]any{"isbn": hobbit, "stock": 2})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var book BookResponse
	decodeData(t, resp, &book)
	assert.Equal(t, 2, book.Stock)
	assert.Equal(t, 0, book.Remain)

	resp = ts.api.Post(BasePath+"/admin/book/stock", tokenHeader(admin), map[string]any{"isbn": hobbit, "stock": 1})
	env := assertFailure(t, resp, domainerrors.CodeStockTooLow)
	assert.NotEmpty(t, env.Details)

	resp = ts.api.Post(BasePath+"/admin/book/stock", tokenHeader(admin), map[string]any{"isbn": gopl, "stock": 1})
	assertFailure(t, resp, domainerrors.CodeBookNotFound)

	resp = ts.api.Post(BasePath+"/admin/book/stock", tokenHeader(admin), map[string]any{"isbn": hobbit, "stock": 101})
	assertFailure(t, resp, domainerrors.CodeInvalidData)
}
