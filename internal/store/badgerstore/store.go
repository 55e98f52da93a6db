// Package badgerstore implements store.Store on an embedded Badger database.
//
// Badger runs Update units as serializable snapshot transactions. A unit
// that read a key another unit committed in the meantime fails at commit
// with badger.ErrConflict; the store then replays the unit with exponential
// backoff. A unit that keeps conflicting fails with store.ErrConflict.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/books-manager/books-manager-server/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger

	// MaxAttempts bounds how often a conflicting Update unit is run.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles on every retry.
	BaseDelay time.Duration
}

const (
	defaultMaxAttempts = 8
	defaultBaseDelay   = 5 * time.Millisecond
)

// Store is a Badger-backed store.Store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	retry  retryConfig
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		db:     db,
		logger: logger,
		retry: retryConfig{
			maxAttempts:  opts.MaxAttempts,
			baseDelay:    opts.BaseDelay,
			jitterFactor: defaultJitterFactor,
		},
	}
	if s.retry.maxAttempts <= 0 {
		s.retry.maxAttempts = defaultMaxAttempts
	}
	if s.retry.baseDelay <= 0 {
		s.retry.baseDelay = defaultBaseDelay
	}

	logger.Info("badger store opened", "path", opts.Path, "in_memory", opts.InMemory)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn})
	})
}

// Update implements store.Store. fn is run again from scratch after a
// commit conflict, so it must not keep state outside the unit between runs.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	attempts := 0
	err := s.retry.run(ctx, func() error {
		attempts++
		return s.updateOnce(fn)
	})
	if errors.Is(err, badger.ErrConflict) {
		s.logger.Warn("update abandoned after repeated conflicts", "attempts", attempts)
		return store.ErrConflict.WithCause(err)
	}
	if attempts > 1 && err == nil {
		s.logger.Debug("update committed after retry", "attempts", attempts)
	}
	return err
}

func (s *Store) updateOnce(fn func(tx store.Tx) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&tx{txn: txn}); err != nil {
		return err
	}
	return txn.Commit()
}

// tx implements store.Tx on one Badger transaction.
type tx struct {
	txn *badger.Txn
}

func (t *tx) get(key []byte, dest any) error {
	item, err := t.txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func (t *tx) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return t.txn.Set(key, data)
}

func (t *tx) exists(key []byte) (bool, error) {
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanValues decodes every value under prefix with decode.
func (t *tx) scanValues(prefix []byte, decode func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(decode); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys returns the key suffixes after prefix without loading values.
func (t *tx) scanKeys(prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		out = append(out, string(it.Item().Key()[len(prefix):]))
	}
	return out
}
