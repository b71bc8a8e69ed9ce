package db

import (
	"context"
	"os"
	"testing"
)

// PostgresTestURLEnv names the variable that enables PostgreSQL-backed tests.
const PostgresTestURLEnv = "ITEMAPI_TEST_POSTGRES_URL"

// NewTestDB creates a fresh in-memory SQLite database with all migrations applied.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:", Options{})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if _, err := Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

// NewTestPostgres connects to the database named by ITEMAPI_TEST_POSTGRES_URL,
// migrates it and empties the items table. The test is skipped when the
// variable is unset.
func NewTestPostgres(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv(PostgresTestURLEnv)
	if url == "" {
		t.Skipf("%s not set", PostgresTestURLEnv)
	}

	db, err := Open(url, Options{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("opening postgres test database: %v", err)
	}

	ctx := context.Background()
	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("migrating postgres test database: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE items RESTART IDENTITY`); err != nil {
		db.Close()
		t.Fatalf("truncating items: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
