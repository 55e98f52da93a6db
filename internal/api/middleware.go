package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/i18n"
)

// TokenHeader carries the access token sent by the web front-end.
// "Authorization: Bearer" is accepted as well.
const TokenHeader = "X-Token"

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	sessionKey  ctxKey = "session"
	clientIPKey ctxKey = "clientIP"
)

// session is the outcome of token authentication for one request.
type session struct {
	user   *domain.User
	claims *auth.Claims
	err    error
}

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, *auth.Claims, error)
}

// languageMiddleware picks the response language from Accept-Language.
func languageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := i18n.Negotiate(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(i18n.WithLanguage(r.Context(), tag)))
	})
}

// clientIPMiddleware records the client address without its port. It runs
// after chi's RealIP, which has already applied X-Forwarded-For and X-Real-IP.
func clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
	})
}

// authMiddleware verifies the request token, if any, and stores the outcome in
// the context. Requests without a token continue anonymously; operations that
// need a user reject them in requireUser.
func authMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, claims, err := authn.Authenticate(r.Context(), token)
			ctx := context.WithValue(r.Context(), sessionKey, &session{user: user, claims: claims, err: err})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
