package providers

import (
	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/logger"
)

// AuthKey wraps the token key bytes.
type AuthKey []byte

// ProvideAuthKey uses the configured token key, or loads or generates one
// under the data directory.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Auth.TokenKey != "" {
		key, err := auth.ParseKeyHex(cfg.Auth.TokenKey)
		if err != nil {
			return nil, err
		}
		log.Info("Token key loaded from configuration", "token_duration", cfg.Auth.TokenDuration)
		return AuthKey(key), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.App.DataDir)
	if err != nil {
		return nil, err
	}

	log.Info("Token key loaded", "dir", cfg.App.DataDir, "token_duration", cfg.Auth.TokenDuration)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.TokenDuration)
}

// ProvidePasswordHasher provides the Argon2id password hasher.
func ProvidePasswordHasher(i do.Injector) (*auth.PasswordHasher, error) {
	return auth.NewPasswordHasher(auth.DefaultArgon2Params), nil
}
