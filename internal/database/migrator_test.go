package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrator_LoadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_add_index.sql":  "CREATE INDEX x ON t (a);",
		"001_init.sql":       "CREATE TABLE t (a INT);",
		"README.md":          "not a migration",
		"invalid.sql":        "SELECT 1;",
		"010_later_step.sql": "SELECT 2;",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	migrator := NewMigrator(nil, "postgres")
	migrations, err := migrator.LoadMigrations(dir)
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}

	expected := []string{"001", "002", "010"}
	if len(migrations) != len(expected) {
		t.Fatalf("Expected %d migrations, got %d", len(expected), len(migrations))
	}
	for i, version := range expected {
		if migrations[i].Version != version {
			t.Errorf("migration %d: version %s, expected %s", i, migrations[i].Version, version)
		}
	}
	if migrations[0].SQL != files["001_init.sql"] {
		t.Errorf("unexpected SQL for first migration: %q", migrations[0].SQL)
	}
}

func TestMigrator_LoadsRepositoryMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, "postgres").LoadMigrations("../../migrations")
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("Expected repository migrations to be present")
	}
}

func TestMigrator_SkipsSQLite(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.RunMigrations("does-not-exist"); err != nil {
		t.Errorf("Expected sqlite migrations to be skipped, got %v", err)
	}
}
