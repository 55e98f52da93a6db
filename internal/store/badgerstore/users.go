package badgerstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/store"
)

// CreateUser implements store.UserStore.
func (t *tx) CreateUser(_ context.Context, user *domain.User) error {
	key := userKey(user.Email)
	exists, err := t.exists(key)
	if err != nil {
		return fmt.Errorf("check user %s: %w", user.Email, err)
	}
	if exists {
		return store.ErrAlreadyExists.WithMessagef("user %s already exists", user.Email)
	}
	return t.set(key, user)
}

// GetUser implements store.UserStore.
func (t *tx) GetUser(_ context.Context, email domain.Email) (*domain.User, error) {
	var user domain.User
	err := t.get(userKey(email), &user)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound.WithMessagef("user %s not found", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	return &user, nil
}

// UpdateUser implements store.UserStore. The creation time is kept from the
// stored record.
func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	existing, err := t.GetUser(ctx, user.Email)
	if err != nil {
		return err
	}
	updated := *user
	updated.CreatedAt = existing.CreatedAt
	return t.set(userKey(user.Email), &updated)
}

// ListUsers implements store.UserStore.
func (t *tx) ListUsers(_ context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := t.scanValues([]byte(userPrefix), func(val []byte) error {
		var u domain.User
		if err := json.Unmarshal(val, &u); err != nil {
			return err
		}
		users = append(users, &u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	slices.SortFunc(users, func(a, b *domain.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(string(a.Email), string(b.Email)))
	})
	return users, nil
}
