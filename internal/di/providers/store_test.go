package providers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/store/storetest"
)

func TestOpenStore(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})

	tests := []struct {
		name string
		db   config.DatabaseConfig
	}{
		{"sqlite", config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "books.db")}},
		{"badger", config.DatabaseConfig{Driver: config.DriverBadger, Path: filepath.Join(t.TempDir(), "badger")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := OpenStore(t.Context(), tt.db, log)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })

			require.NoError(t, st.Ping(t.Context()))
			storetest.SeedBook(t, st, "9787111213826", 3)
		})
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(t.Context(), config.DatabaseConfig{Driver: "mysql"}, logger.New(logger.Config{}))
	assert.ErrorContains(t, err, "unsupported database driver")
}
