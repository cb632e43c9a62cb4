package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateMigrationNumbersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "README"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	up, down, err := createMigration(dir, "add_wishlists")
	if err != nil {
		t.Fatalf("expected migration to be created, got %v", err)
	}
	if want := filepath.Join(dir, "000002_add_wishlists.up.sql"); up != want {
		t.Fatalf("expected %s, got %s", want, up)
	}
	if want := filepath.Join(dir, "000002_add_wishlists.down.sql"); down != want {
		t.Fatalf("expected %s, got %s", want, down)
	}
	for _, path := range []string{up, down} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
	}

	if _, _, err := createMigration(dir, "add_wishlists"); err != nil {
		t.Fatalf("expected next version to be free, got %v", err)
	}
}

func TestCreateMigrationRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"", "two words", "a/b"} {
		if _, _, err := createMigration(dir, name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}
