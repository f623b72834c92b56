package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

const testMigrationsDir = "testdata"

// useTestMigrations swaps in the test fixture filesystem for the duration of
// a test and restores the package state afterwards.
func useTestMigrations(t *testing.T) {
	t.Helper()

	savedFS := MigrationsFS
	savedDir := MigrationsDir
	MigrationsFS = testMigrationsFS
	MigrationsDir = testMigrationsDir

	t.Cleanup(func() {
		MigrationsFS = savedFS
		MigrationsDir = savedDir
	})
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Migration created its table.
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'test_entries'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("test_entries table not created: %v", err)
	}

	// Version recorded.
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&count); err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", count)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&count); err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations rows after re-run = %d, want 1", count)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	savedFS := MigrationsFS
	savedDir := MigrationsDir
	MigrationsFS = embed.FS{}
	t.Cleanup(func() {
		MigrationsFS = savedFS
		MigrationsDir = savedDir
	})

	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no embedded migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260101_000000_test_schema.up.sql", "20260101_000000", "test_schema", true, true},
		{"20260101_000000_test_schema.down.sql", "20260101_000000", "test_schema", false, true},
		{"20260101_000000.up.sql", "20260101_000000", "", true, true},
		{"readme.txt", "", "", false, false},
		{"20260101_000000_missing_direction.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}
