package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	jsoniter "github.com/json-iterator/go"

	"github.com/books-manager/books-manager-server/internal/domain"
	"github.com/books-manager/books-manager-server/internal/id"
)

const (
	tokenIssuer   = "books-manager-server"
	tokenAudience = "books-manager-web"
)

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", keyLength, len(key))
	}
	symmetric, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &TokenService{key: symmetric, duration: duration, now: time.Now}, nil
}

// Issue creates a token for user valid for the configured duration.
func (s *TokenService) Issue(user *domain.User) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email:      user.Email,
		Role:       user.Role,
		Issuer:     tokenIssuer,
		Audience:   tokenAudience,
		IssuedAt:   now,
		NotBefore:  now,
		Expiration: now.Add(s.duration),
		TokenID:    id.NewUUID(),
	}

	token := paseto.NewToken()
	token.SetIssuer(claims.Issuer)
	token.SetSubject(string(user.Email))
	token.SetAudience(claims.Audience)
	token.SetIssuedAt(claims.IssuedAt)
	token.SetNotBefore(claims.NotBefore)
	token.SetExpiration(claims.Expiration)
	token.SetJti(claims.TokenID)
	if err := token.Set("email", string(user.Email)); err != nil {
		return "", nil, fmt.Errorf("set email claim: %w", err)
	}
	if err := token.Set("role", string(user.Role)); err != nil {
		return "", nil, fmt.Errorf("set role claim: %w", err)
	}

	return token.V4Encrypt(s.key, nil), claims, nil
}

// Verify decrypts a token and checks issuer, audience and validity window.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims Claims
	if err := jsoniter.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return &claims, nil
}

// Duration returns the token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
