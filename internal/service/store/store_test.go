package store

import (
	"testing"

	"chathub/internal/config"
	"chathub/internal/storage"
)

// newTestStore opens an in-memory sqlite database restricted to a
// single connection so every query sees the same memory store.
func newTestStore(t *testing.T) *Service {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db)
}
