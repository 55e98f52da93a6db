package providers

import (
	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/ledger"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/metrics"
	"github.com/books-manager/books-manager-server/internal/service"
	"github.com/books-manager/books-manager-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideUserService provides the account service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	hasher := do.MustInvoke[*auth.PasswordHasher](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, tokens, hasher, validator, log.Logger), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, indexHandle.CatalogIndex, validator, log.Logger), nil
}

// ProvideLedger provides the borrow and return ledger.
func ProvideLedger(i do.Injector) (*ledger.Ledger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	users := do.MustInvoke[*service.UserService](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	policy := ledger.ReturnLenient
	if cfg.Ledger.StrictReturn {
		policy = ledger.ReturnStrict
	}

	log.Info("Ledger ready",
		"reject_reborrow", cfg.Ledger.RejectReborrow,
		"strict_return", cfg.Ledger.StrictReturn,
	)

	return ledger.New(storeHandle.Store, users, ledger.Options{
		RejectReborrow: cfg.Ledger.RejectReborrow,
		ReturnPolicy:   policy,
		Logger:         log.Logger,
		Metrics:        m,
	}), nil
}
