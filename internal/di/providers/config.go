// Package providers contains dependency injection providers for the
// books-manager server.
package providers

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/logger"
)

// ProvideConfig provides the application configuration read from flags,
// the environment and the optional YAML file.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting books-manager server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.App.DataDir,
		"db_driver", cfg.Database.Driver,
		"config_file", cfg.File,
	)

	return log, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}

// ConfigWatcherHandle follows the config file and applies the settings that
// can change at runtime.
type ConfigWatcherHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *ConfigWatcherHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideConfigWatcher starts watching the config file. Only the log level
// is reloaded; everything else needs a restart.
func ProvideConfigWatcher(i do.Injector) (*ConfigWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := cfg.Watch(ctx, log.Logger, func(next *config.Config) {
			if next.Logger.Level != cfg.Logger.Level {
				log.SetLevel(next.Logger.Level)
				log.Info("Log level changed", "level", next.Logger.Level)
			}
		})
		if err != nil {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()

	return &ConfigWatcherHandle{cancel: cancel, done: done}, nil
}
