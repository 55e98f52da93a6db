package auth

import (
	"time"

	"github.com/books-manager/books-manager-server/internal/domain"
)

// Claims are the contents of an access token. v4.local tokens are
// encrypted, so clients cannot read them.
type Claims struct {
	Email domain.Email `json:"email"`
	Role  domain.Role  `json:"role"`

	Issuer     string    `json:"iss"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IsAdmin reports whether the token was issued to an administrator.
func (c *Claims) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}
