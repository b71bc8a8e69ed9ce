package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	database, err := Open(":memory:", Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateAppliesAllInOrder(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	applied, err := Migrate(ctx, database)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(applied) != len(migrations) {
		t.Fatalf("expected %d migrations applied, got %d", len(migrations), len(applied))
	}
	for i, m := range applied {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
	}

	// Every column of the final schema is usable.
	_, err = database.ExecContext(ctx,
		`INSERT INTO items (name, description, roll_number, class_name, phone_number, image_url)
		 VALUES ('a', 'b', 'c', 'd', 'e', 'https://example.com/f.png')`)
	if err != nil {
		t.Fatalf("inserting into migrated schema: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	if _, err := Migrate(ctx, database); err != nil {
		t.Fatal(err)
	}

	applied, err := Migrate(ctx, database)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no migrations on second run, got %d", len(applied))
	}
}

func TestStatusAndPending(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	pending, err := Pending(ctx, database)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != len(migrations) {
		t.Errorf("expected all %d migrations pending, got %d", len(migrations), len(pending))
	}

	if _, err := Migrate(ctx, database); err != nil {
		t.Fatal(err)
	}

	statuses, err := Status(ctx, database)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, st := range statuses {
		if !st.Applied {
			t.Errorf("migration %d (%s) not applied", st.Version, st.Name)
		}
		if st.AppliedAt == nil {
			t.Errorf("migration %d has no applied_at", st.Version)
		}
	}

	pending, err = Pending(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %d", len(pending))
	}
}

func TestMigrateWaitsForFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.sqlite3")
	database, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	held := flock.New(path + ".lock")
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("taking lock: locked=%v err=%v", locked, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := Migrate(ctx, database); err == nil {
		t.Fatal("expected Migrate to fail while the lock is held")
	}

	if err := held.Unlock(); err != nil {
		t.Fatal(err)
	}
	if _, err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("Migrate after unlock: %v", err)
	}
}

func TestMigrationsHaveBothDialects(t *testing.T) {
	for _, m := range Migrations() {
		if len(m.statements(SQLite)) == 0 || len(m.statements(Postgres)) == 0 {
			t.Errorf("migration %d (%s) is missing statements for a dialect", m.Version, m.Name)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	for _, v := range []any{want, "2026-10-19 08:30:00", []byte("2026-10-19T08:30:00Z")} {
		got, err := parseTimestamp(v)
		if err != nil {
			t.Errorf("parseTimestamp(%v): %v", v, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTimestamp(%v) = %s, want %s", v, got, want)
		}
	}

	if _, err := parseTimestamp(42); err == nil {
		t.Error("expected error for integer input")
	}
}
