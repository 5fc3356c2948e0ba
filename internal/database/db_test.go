package database

import (
	"path/filepath"
	"testing"

	"estoque-backend/internal/models"
)

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@localhost:5432/estoque":                      true,
		"postgresql://localhost/estoque":                             true,
		"host=localhost user=estoque dbname=estoque sslmode=disable": true,
		"estoque.db":                                                 false,
		"file::memory:?cache=shared":                                 false,
	}
	for dsn, want := range cases {
		if got := IsPostgresDSN(dsn); got != want {
			t.Errorf("IsPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestOpen_SQLiteMigrates(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "estoque.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, m := range []any{&models.User{}, &models.AuditLog{}} {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not migrated", m)
		}
	}
}
