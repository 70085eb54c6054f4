package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDirFor(t *testing.T) {
	if dir, err := DirFor(TargetDirectory); err != nil || dir != DirectoryDir {
		t.Fatalf("unexpected directory dir %q err=%v", dir, err)
	}
	if dir, err := DirFor(TargetTenant); err != nil || dir != TenantDir {
		t.Fatalf("unexpected tenant dir %q err=%v", dir, err)
	}
	if _, err := DirFor("billing"); err == nil {
		t.Fatalf("expected unknown target to fail")
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	for _, target := range []Target{TargetDirectory, TargetTenant} {
		source, err := SourceFor(target)
		if err != nil {
			t.Fatalf("%s: %v", target, err)
		}
		if err := Validate(source); err != nil {
			t.Fatalf("%s: %v", target, err)
		}
	}
	if _, err := SourceFor("billing"); err == nil {
		t.Fatalf("expected unknown target to fail")
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	source, err := SourceFor(TargetTenant)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	embeddedNames, err := fs.Glob(source, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "tenant", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embeddedNames) == 0 || len(embeddedNames) != len(onDisk) {
		t.Fatalf("embedded %v does not match disk %v", embeddedNames, onDisk)
	}
}

func TestRunRequiresDB(t *testing.T) {
	source, _ := SourceFor(TargetTenant)
	if err := Run(context.Background(), nil, source, "up", nil); err == nil {
		t.Fatalf("expected nil db to fail")
	}
	if err := MigrateToVersion(context.Background(), nil, source, "not-a-version", nil); err == nil {
		t.Fatalf("expected bad version to fail")
	}
}

func TestTenantMigrationsContainSchemas(t *testing.T) {
	checks := map[string][]string{
		"*_create_products_table.sql": {
			"CREATE TABLE IF NOT EXISTS products",
			"price NUMERIC(12,2)",
			"products_inventory_non_negative",
		},
		"*_create_orders_tables.sql": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CONSTRAINT orders_order_no_key UNIQUE (order_no)",
			"CREATE TABLE IF NOT EXISTS order_product",
		},
	}
	for pattern, subs := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", "tenant", pattern))
		if err != nil || len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %v (err=%v)", pattern, matches, err)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		for _, sub := range subs {
			if !strings.Contains(string(data), sub) {
				t.Errorf("%s missing expected statement %q", matches[0], sub)
			}
		}
	}
}

func TestCreateAndValidate(t *testing.T) {
	dir := t.TempDir()
	if err := Validate(os.DirFS(dir)); err == nil {
		t.Fatalf("empty dir should fail validation")
	}

	path, err := CreateSQLMigration(dir, "Add Variant Column!")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasSuffix(path, "_add_variant_column.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Validate(os.DirFS(dir)); err == nil {
		t.Fatalf("expected invalid filename to fail")
	}
}

func TestCreateBumpsVersionPastNewest(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first, err := createAt(dir, "first", now)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := createAt(dir, "second", now)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(first) != "20260302090000_first.sql" {
		t.Fatalf("unexpected first name %s", first)
	}
	if filepath.Base(second) != "20260302090001_second.sql" {
		t.Fatalf("unexpected second name %s", second)
	}
	if err := Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatalf("expected error for name without usable characters")
	}
}
