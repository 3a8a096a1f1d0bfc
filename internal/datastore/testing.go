package datastore

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// NewTestStore opens a migrated SQLite store in a temporary directory and
// closes it when the test ends.
func NewTestStore(tb testing.TB) *Store {
	tb.Helper()

	m, err := NewSQLiteManager(SQLiteConfig{
		Path:   filepath.Join(tb.TempDir(), "fieldwatch_test.db"),
		Logger: logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
	})
	if err != nil {
		tb.Fatalf("open test store: %v", err)
	}
	if err := m.Initialize(); err != nil {
		tb.Fatalf("migrate test store: %v", err)
	}
	tb.Cleanup(func() { _ = m.Close() })

	return NewStore(m)
}

// NewSeededTestStore is NewTestStore with the built-in demo data applied.
func NewSeededTestStore(tb testing.TB) *Store {
	tb.Helper()

	store := NewTestStore(tb)
	seed, err := LoadSeed("")
	if err != nil {
		tb.Fatalf("load seed: %v", err)
	}
	if _, err := seed.Apply(context.Background(), store); err != nil {
		tb.Fatalf("apply seed: %v", err)
	}
	return store
}
