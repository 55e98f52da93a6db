package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/service"
	"github.com/books-manager/books-manager-server/internal/store"
	"github.com/books-manager/books-manager-server/internal/store/badgerstore"
	"github.com/books-manager/books-manager-server/internal/store/sqlstore"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the storage backend selected by the configuration.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := OpenStore(context.Background(), cfg.Database, log)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "driver", cfg.Database.Driver, "path", cfg.Database.Path)

	return &StoreHandle{Store: st}, nil
}

// OpenStore opens the backend described by db. It is shared with the
// command-line tools that run without the container.
func OpenStore(ctx context.Context, db config.DatabaseConfig, log *logger.Logger) (store.Store, error) {
	switch db.Driver {
	case config.DriverSQLite:
		return sqlstore.Open(ctx, sqlstore.Options{Driver: sqlstore.DriverSQLite, DSN: db.Path, Logger: log.Logger})
	case config.DriverPostgres:
		return sqlstore.Open(ctx, sqlstore.Options{Driver: sqlstore.DriverPostgres, DSN: db.DSN, Logger: log.Logger})
	case config.DriverBadger:
		return badgerstore.Open(badgerstore.Options{Path: db.Path, Logger: log.Logger})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// Bootstrap records the startup state of the library.
type Bootstrap struct {
	AdminEmail string
}

// ProvideBootstrap makes sure the administrator account exists.
func ProvideBootstrap(i do.Injector) (*Bootstrap, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	users := do.MustInvoke[*service.UserService](i)

	if err := users.EnsureAdmin(context.Background(), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return nil, fmt.Errorf("ensure admin account: %w", err)
	}

	log.Info("Administrator account ready", "email", cfg.Auth.AdminEmail)

	return &Bootstrap{AdminEmail: cfg.Auth.AdminEmail}, nil
}
