package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/audit"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/metrics"
)

// ProvideAuditor provides the ledger consistency auditor.
func ProvideAuditor(i do.Injector) (*audit.Auditor, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return audit.New(storeHandle.Store, audit.Options{Metrics: m, Logger: log.Logger}), nil
}

// AuditJobHandle wraps the periodic audit with shutdown capability.
type AuditJobHandle struct {
	*audit.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *AuditJobHandle) Shutdown() error {
	if h.Scheduler == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideAuditJob starts the periodic ledger audit.
func ProvideAuditJob(i do.Injector) (*AuditJobHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	auditor := do.MustInvoke[*audit.Auditor](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Audit.Enabled {
		log.Info("Ledger audit disabled by configuration")
		return &AuditJobHandle{}, nil
	}

	scheduler, err := audit.NewScheduler(auditor, cfg.Audit.Schedule, log.Logger)
	if err != nil {
		return nil, err
	}
	scheduler.Start()

	log.Info("Ledger audit scheduled", "schedule", cfg.Audit.Schedule)

	return &AuditJobHandle{Scheduler: scheduler}, nil
}
