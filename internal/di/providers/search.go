package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/search"
	"github.com/books-manager/books-manager-server/internal/service"
)

// SearchIndexHandle wraps the catalog index with shutdown capability.
type SearchIndexHandle struct {
	*search.CatalogIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve catalog index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.Open(search.Options{
		Path:     cfg.Search.Path,
		InMemory: cfg.Search.InMemory,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "in_memory", cfg.Search.InMemory)

	return &SearchIndexHandle{CatalogIndex: index}, nil
}

// RebuildSearchIndex reloads the catalog index from the store. Index updates
// after a commit are best effort, so this runs on every start.
func RebuildSearchIndex(i do.Injector) {
	catalog := do.MustInvoke[*service.CatalogService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := catalog.RebuildIndex(context.Background()); err != nil {
		log.Error("Search index rebuild failed", "error", err)
		return
	}

	count, _ := indexHandle.DocumentCount()
	log.Info("Search index rebuilt", "documents", count)
}
