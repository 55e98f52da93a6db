package api

import (
	"context"

	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

// requireUser returns the authenticated user. A missing or invalid token
// yields ErrInvalidToken; a disabled or deleted account ErrAccountDisabled.
func requireUser(ctx context.Context) (*domain.User, error) {
	s, ok := ctx.Value(sessionKey).(*session)
	if !ok {
		return nil, domainerrors.ErrInvalidToken
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

// requireAdmin returns the authenticated user if it holds the admin role.
func requireAdmin(ctx context.Context) (*domain.User, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domainerrors.ErrNotAdmin
	}
	return user, nil
}
