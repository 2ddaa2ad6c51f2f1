package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_categories.sql", true, 1, "create_categories"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("valid = %v, want %v", ok, tt.valid)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("got (%d, %q), want (%d, %q)", version, name, tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_second.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);",
		"0001_first.sql":  "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);",
		"README.md":       "not a migration",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := readMigrations(dir, target{Project: "p", Dataset: "d"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations not sorted: %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`p.d.a`") {
		t.Errorf("placeholders not replaced: %s", migrations[0].SQL)
	}

	// Checksums ignore the target dataset.
	again, err := readMigrations(dir, target{Project: "other", Dataset: "x"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Checksum != migrations[0].Checksum {
		t.Error("checksum should not depend on the target")
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("different files should have different checksums")
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001_a.sql", "0001_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := readMigrations(dir, target{Project: "p", Dataset: "d"}, zerolog.Nop()); err == nil {
		t.Error("expected an error for duplicate versions")
	}
}

func TestPendingMigrations(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Checksum: "aaa"},
		{Version: 2, Name: "b", Checksum: "bbb"},
		{Version: 3, Name: "c", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa", AppliedAt: time.Now()},
		{Version: 2, Checksum: "changed", AppliedAt: time.Now()},
	}

	pending := pendingMigrations(migrations, applied, zerolog.Nop())
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("pending = %+v, want only version 3", pending)
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	dir, err := resolveDir("migrations/bigquery")
	if err != nil {
		t.Skip("migrations directory not reachable from test working directory")
	}
	migrations, err := readMigrations(dir, target{Project: "p", Dataset: "d"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %s has version %d, want %d", m.Filename, m.Version, i+1)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("migration %s has unreplaced placeholders", m.Filename)
		}
	}
}
