package database

import (
	"path/filepath"
	"testing"
)

// setupTestDB opens a sqlite database in a temp directory.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	config := Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}

	db, err := NewDB(config)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return db, func() { db.Close() }
}
