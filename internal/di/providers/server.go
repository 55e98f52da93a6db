package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/api"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/ledger"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/metrics"
	"github.com/books-manager/books-manager-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	services := &api.Services{
		Users:   do.MustInvoke[*service.UserService](i),
		Catalog: do.MustInvoke[*service.CatalogService](i),
		Ledger:  do.MustInvoke[*ledger.Ledger](i),
	}

	handler := api.NewServer(services, api.Options{
		StaticDir:          cfg.Server.StaticDir,
		CORSOrigins:        cfg.Server.CORSOrigins,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
		Metrics:            m,
		Store:              storeHandle.Store,
	}, log.Logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bind before returning so a busy port fails the bootstrap.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		handler.Close()
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	// Serve in background
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", ln.Addr().String(), "base_path", api.BasePath)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
