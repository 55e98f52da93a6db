package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/books-manager/books-manager-server/internal/domain"
)

// CatalogIndex wraps a Bleve index with catalog operations.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index swaps during Rebuild.
type CatalogIndex struct {
	index  bleve.Index
	path   string // empty for in-memory indexes
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the catalog index.
type Options struct {
	Path     string       // Index directory; ignored when InMemory
	InMemory bool         // Keep the index in memory only
	Logger   *slog.Logger // Logger for operations (uses discard if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

const versionFile = "catalog.version"

// Open creates or opens a catalog index.
// An existing on-disk index with a missing or outdated mapping version, or one
// that fails to open, is removed and recreated empty. Callers repopulate it
// with Rebuild.
func Open(opts Options) (*CatalogIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.InMemory {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &CatalogIndex{index: index, logger: logger}, nil
	}

	if opts.Path == "" {
		return nil, errors.New("catalog index path is required")
	}
	indexPath := opts.Path
	versionPath := filepath.Join(filepath.Dir(indexPath), versionFile)

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existingVersion, readErr := os.ReadFile(versionPath) //#nosec G304 -- derived from configured index path
		switch {
		case readErr != nil:
			logger.Info("catalog index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("catalog index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		default:
			var err error
			index, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
				needsRebuild = true
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	if index == nil {
		if err := os.MkdirAll(filepath.Dir(indexPath), 0o750); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o600); err != nil {
			logger.Warn("failed to write catalog index version file", "error", err)
		}
		logger.Info("created new catalog index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing catalog index", "path", indexPath)
	}

	return &CatalogIndex{index: index, path: indexPath, logger: logger}, nil
}

// Close closes the index and releases resources.
func (c *CatalogIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Close()
}

// IndexBook adds or replaces a book.
func (c *CatalogIndex) IndexBook(b *domain.Book) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Index(string(b.ISBN), NewBookDocument(b).ToMap())
}

// IndexBooks adds or replaces books in batches.
func (c *CatalogIndex) IndexBooks(books []*domain.Book) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return indexBatches(c.index, books)
}

func indexBatches(index bleve.Index, books []*domain.Book) error {
	const batchSize = 500

	for i := 0; i < len(books); i += batchSize {
		end := min(i+batchSize, len(books))

		batch := index.NewBatch()
		for _, b := range books[i:end] {
			if err := batch.Index(string(b.ISBN), NewBookDocument(b).ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", b.ISBN, err)
			}
		}

		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// RemoveBooks removes books from the index. Unknown ISBNs are ignored.
func (c *CatalogIndex) RemoveBooks(isbns []domain.ISBN) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	batch := c.index.NewBatch()
	for _, isbn := range isbns {
		batch.Delete(string(isbn))
	}
	return c.index.Batch(batch)
}

// DocumentCount returns the total number of indexed books.
func (c *CatalogIndex) DocumentCount() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.DocCount()
}

// Rebuild replaces the index contents with books.
//
// This acquires an exclusive lock and blocks searches until it finishes.
func (c *CatalogIndex) Rebuild(books []*domain.Book) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if c.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(c.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(c.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	c.index = index

	if err := indexBatches(index, books); err != nil {
		return err
	}

	c.logger.Info("rebuilt catalog index", "books", len(books))
	return nil
}
