// Package catalogtest provides an in-memory catalog store for tests.
package catalogtest

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// DatabaseConfig returns a configuration for a private in-memory sqlite
// database.
func DatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}
}

// NewStore opens a migrated in-memory store, loads the seed file when
// seedFile is not empty and closes the store when the test ends.
func NewStore(tb testing.TB, seedFile string, opts ...catalog.StoreOption) *catalog.Store {
	tb.Helper()

	db, err := catalog.Open(context.Background(), DatabaseConfig(), observability.NopLogger())
	if err != nil {
		tb.Fatalf("failed to open test database: %v", err)
	}

	store := catalog.NewStore(db, opts...)
	tb.Cleanup(func() { _ = store.Close() })

	if seedFile == "" {
		return store
	}

	doc, err := catalog.LoadSeedFile(seedFile)
	if err != nil {
		tb.Fatalf("failed to load seed: %v", err)
	}
	if err := store.Seed(context.Background(), doc); err != nil {
		tb.Fatalf("failed to seed store: %v", err)
	}
	return store
}
