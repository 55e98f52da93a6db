package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/domain"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/i18n"
)

type stubAuthenticator struct {
	user *domain.User
	err  error
	got  string
}

func (a *stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, *auth.Claims, error) {
	a.got = token
	if a.err != nil {
		return nil, nil, a.err
	}
	return a.user, &auth.Claims{Email: a.user.Email, Role: a.user.Role}, nil
}

func runAuth(authn Authenticator, header, value string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	h := authMiddleware(authn)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		user, err = requireUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return user, err
}

func TestAuthMiddleware(t *testing.T) {
	reader := &domain.User{Email: readerEmail, Role: domain.RoleUser, Status: domain.UserStatusEnabled}

	t.Run("x-token", func(t *testing.T) {
		authn := &stubAuthenticator{user: reader}
		user, err := runAuth(authn, TokenHeader, " tok ")
		assert.NoError(t, err)
		assert.Equal(t, reader, user)
		assert.Equal(t, "tok", authn.got)
	})

	t.Run("bearer", func(t *testing.T) {
		authn := &stubAuthenticator{user: reader}
		_, err := runAuth(authn, "Authorization", "bearer tok")
		assert.NoError(t, err)
		assert.Equal(t, "tok", authn.got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := runAuth(&stubAuthenticator{user: reader}, "", "")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
	})

	t.Run("basic auth ignored", func(t *testing.T) {
		_, err := runAuth(&stubAuthenticator{user: reader}, "Authorization", "Basic abc")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
	})

	t.Run("rejected", func(t *testing.T) {
		_, err := runAuth(&stubAuthenticator{err: domainerrors.ErrAccountDisabled}, TokenHeader, "tok")
		assert.ErrorIs(t, err, domainerrors.ErrAccountDisabled)
	})
}

func TestRequireAdmin(t *testing.T) {
	admin := &domain.User{Email: adminEmail, Role: domain.RoleAdmin}
	reader := &domain.User{Email: readerEmail, Role: domain.RoleUser}

	ctx := context.WithValue(context.Background(), sessionKey, &session{user: admin})
	user, err := requireAdmin(ctx)
	assert.NoError(t, err)
	assert.Equal(t, admin, user)

	ctx = context.WithValue(context.Background(), sessionKey, &session{user: reader})
	_, err = requireAdmin(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrNotAdmin)
}

func TestLanguageMiddleware(t *testing.T) {
	var got language.Tag
	h := languageMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = i18n.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "zh-CN")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, i18n.Negotiate("zh-CN"), got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, i18n.Negotiate(""), got)
}

func TestClientIPMiddleware(t *testing.T) {
	var got string
	h := clientIPMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = clientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.7", got)
}
