// Package di provides dependency injection configuration for the
// books-manager server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/audit"
	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/di/providers"
	"github.com/books-manager/books-manager-server/internal/ledger"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/metrics"
	"github.com/books-manager/books-manager-server/internal/service"
	"github.com/books-manager/books-manager-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideConfigWatcher)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvidePasswordHasher)

	// Business services
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideLedger)
	do.Provide(injector, providers.ProvideBootstrap)

	// Workers
	do.Provide(injector, providers.ProvideAuditor)
	do.Provide(injector, providers.ProvideAuditJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server listens.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.ConfigWatcherHandle](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*auth.PasswordHasher](injector)

	// Business services
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*ledger.Ledger](injector)
	if _, err := do.Invoke[*providers.Bootstrap](injector); err != nil {
		return err
	}

	// The index is repaired before the first request.
	providers.RebuildSearchIndex(injector)

	// Workers
	_ = do.MustInvoke[*audit.Auditor](injector)
	if _, err := do.Invoke[*providers.AuditJobHandle](injector); err != nil {
		return err
	}

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
