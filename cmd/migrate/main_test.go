package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_purchases.sql", true, 1, "create_purchases"},
		{"0012_monthly_client_totals_view.sql", true, 12, "monthly_client_totals_view"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("got (%d, %q, %v), want (%d, %q, %v)", version, name, ok, tt.version, tt.name, tt.valid)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_view.sql":     "CREATE VIEW `{{PROJECT_ID}}.{{DATASET_ID}}.v` AS SELECT * FROM `{{PROJECT_ID}}.{{DATASET_ID}}.{{TABLE_ID}}`;",
		"0001_table.sql":    "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.{{TABLE_ID}}` (date TIMESTAMP);",
		"README.md":         "not a migration",
		"0003_other.sql.bk": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	target := Target{ProjectID: "p", DatasetID: "d", TableID: "purchases"}
	migrations, err := readMigrations(zerolog.Nop(), dir, target)
	if err != nil {
		t.Fatalf("readMigrations failed: %v", err)
	}

	if len(migrations) != 2 || migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("unexpected migrations: %+v", migrations)
	}
	if migrations[0].SQL != "CREATE TABLE `p.d.purchases` (date TIMESTAMP);" {
		t.Errorf("placeholders not replaced: %s", migrations[0].SQL)
	}
	if strings.Contains(migrations[1].SQL, "{{") {
		t.Errorf("placeholders left in %s", migrations[1].SQL)
	}

	// The checksum ignores the target.
	other, err := readMigrations(zerolog.Nop(), dir, Target{ProjectID: "q", DatasetID: "e", TableID: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if other[0].Checksum != migrations[0].Checksum {
		t.Error("checksum should not depend on placeholders")
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	dir, err := findMigrationsDir("migrations/bigquery")
	if err != nil {
		t.Fatalf("findMigrationsDir: %v", err)
	}
	migrations, err := readMigrations(zerolog.Nop(), dir, Target{ProjectID: "p", DatasetID: "d", TableID: "purchases"})
	if err != nil {
		t.Fatalf("readMigrations: %v", err)
	}
	if len(migrations) == 0 || !strings.Contains(migrations[0].SQL, "`p.d.purchases`") {
		t.Errorf("unexpected repository migrations: %+v", migrations)
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	pending := pendingMigrations(all, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("unexpected pending migrations: %+v", pending)
	}
}
