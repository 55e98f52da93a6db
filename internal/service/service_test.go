package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/search"
	"github.com/books-manager/books-manager-server/internal/store/badgerstore"
	"github.com/books-manager/books-manager-server/internal/validation"
)

// testEnv wires services to an in-memory store and index.
type testEnv struct {
	store   *badgerstore.Store
	index   *search.CatalogIndex
	users   *UserService
	catalog *CatalogService
	tokens  *auth.TokenService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.Open(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(make([]byte, 32), 12*time.Hour)
	require.NoError(t, err)

	// cheap parameters keep the suite fast.
	hasher := auth.NewPasswordHasher(auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	v := validation.New()

	return &testEnv{
		store:   st,
		index:   index,
		users:   NewUserService(st, tokens, hasher, v, nil),
		catalog: NewCatalogService(st, index, v, nil),
		tokens:  tokens,
	}
}
