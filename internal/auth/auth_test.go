package auth

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/domain"
)

// cheap parameters keep the suite fast.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(testParams)

	encoded, err := h.Hash("asdc1234ASD")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Verify(encoded, "asdc1234ASD"))
	assert.False(t, h.Verify(encoded, "asdc1234ASE"))

	again, err := h.Hash("asdc1234ASD")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salts differ")
}

func TestPasswordHasher_VerifiesOtherParams(t *testing.T) {
	encoded, err := NewPasswordHasher(testParams).Hash("password1")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(encoded, "password1"))
}

func TestPasswordHasher_Rejects(t *testing.T) {
	h := NewPasswordHasher(testParams)

	_, err := h.Hash("")
	assert.Error(t, err)
	_, err = h.Hash(strings.Repeat("a", maxPasswordLength+1))
	assert.Error(t, err)

	for _, bad := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=1$m=1,t=1,p=1$AA$AA", "$argon2id$v=19$m=1,t=1,p=1$!!$AA"} {
		assert.False(t, h.Verify(bad, "password1"), bad)
	}
}

func newTestTokenService(t *testing.T, d time.Duration) *TokenService {
	t.Helper()
	key := make([]byte, keyLength)
	for i := range key {
		key[i] = byte(i)
	}
	s, err := NewTokenService(key, d)
	require.NoError(t, err)
	return s
}

func TestTokenService_RoundTrip(t *testing.T) {
	s := newTestTokenService(t, 12*time.Hour)
	user := &domain.User{Email: "admin@admin.com", Role: domain.RoleAdmin}

	token, issued, err := s.Issue(user)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Email("admin@admin.com"), claims.Email)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, issued.TokenID, claims.TokenID)
	assert.WithinDuration(t, issued.Expiration, claims.Expiration, time.Second)
}

func TestTokenService_Expired(t *testing.T) {
	s := newTestTokenService(t, time.Hour)
	start := time.Now()
	s.now = func() time.Time { return start }

	token, _, err := s.Issue(&domain.User{Email: "a@example.com", Role: domain.RoleUser})
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestTokenService_WrongKey(t *testing.T) {
	token, _, err := newTestTokenService(t, time.Hour).Issue(&domain.User{Email: "a@example.com"})
	require.NoError(t, err)

	other, err := NewTokenService(make([]byte, keyLength), time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.Error(t, err)

	_, err = other.Verify("garbage")
	assert.Error(t, err)
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseKeyHex(t *testing.T) {
	key := make([]byte, keyLength)
	got, err := ParseKeyHex(" " + hex.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKeyHex("abcd")
	assert.Error(t, err)
	_, err = ParseKeyHex(strings.Repeat("z", keyHexLength))
	assert.Error(t, err)
}
