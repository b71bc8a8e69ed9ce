package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect Dialect
		source  string
		wantErr bool
	}{
		{"items.sqlite3", SQLite, "items.sqlite3", false},
		{":memory:", SQLite, ":memory:", false},
		{"sqlite:///var/lib/items.db", SQLite, "/var/lib/items.db", false},
		{"postgres://u:p@db:5432/items?sslmode=require", Postgres, "postgres://u:p@db:5432/items?sslmode=require", false},
		{"postgresql://localhost/items", Postgres, "postgresql://localhost/items", false},
		{"", "", "", true},
		{"   ", "", "", true},
		{"sqlite://", "", "", true},
	}

	for _, tt := range tests {
		dialect, source, err := ParseDSN(tt.dsn)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDSN(%q) error = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			continue
		}
		if dialect != tt.dialect || source != tt.source {
			t.Errorf("ParseDSN(%q) = (%q, %q), want (%q, %q)", tt.dsn, dialect, source, tt.dialect, tt.source)
		}
	}
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.sqlite3")

	database, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	if database.Dialect != SQLite {
		t.Errorf("expected sqlite dialect, got %q", database.Dialect)
	}
	if database.Path != path {
		t.Errorf("expected path %q, got %q", path, database.Path)
	}
	if err := database.Verify(context.Background(), time.Second); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestOpenMemoryHasNoPath(t *testing.T) {
	database := NewTestDB(t)
	if database.Path != "" {
		t.Errorf("expected empty path for in-memory database, got %q", database.Path)
	}
}

func TestBuilderPlaceholders(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, "SELECT id FROM items WHERE id = ?"},
		{Postgres, "SELECT id FROM items WHERE id = $1"},
	}

	for _, tt := range tests {
		d := &DB{Dialect: tt.dialect}
		query, _, err := d.Builder().Select("id").From("items").Where("id = ?", 1).ToSql()
		if err != nil {
			t.Fatalf("ToSql: %v", err)
		}
		if query != tt.want {
			t.Errorf("%s: got %q, want %q", tt.dialect, query, tt.want)
		}
	}
}

func TestLockClause(t *testing.T) {
	if got := (&DB{Dialect: Postgres}).LockClause(); got != "FOR UPDATE" {
		t.Errorf("postgres lock clause = %q", got)
	}
	if got := (&DB{Dialect: SQLite}).LockClause(); got != "" {
		t.Errorf("sqlite lock clause = %q", got)
	}
}
