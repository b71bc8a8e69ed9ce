package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string

	sqlite   []string
	postgres []string
}

func (m Migration) statements(d Dialect) []string {
	if d == Postgres {
		return m.postgres
	}
	return m.sqlite
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// migrations is the ordered schema history. Append new migrations at the end
// and never edit one that has shipped.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_items",
		sqlite: []string{
			`CREATE TABLE items (
			    id          INTEGER PRIMARY KEY AUTOINCREMENT,
			    name        TEXT NOT NULL,
			    description TEXT
			)`,
		},
		postgres: []string{
			`CREATE TABLE items (
			    id          BIGSERIAL PRIMARY KEY,
			    name        VARCHAR(255) NOT NULL,
			    description VARCHAR(255)
			)`,
		},
	},
	{
		Version: 2,
		Name:    "add_student_fields",
		sqlite: []string{
			`ALTER TABLE items ADD COLUMN roll_number TEXT`,
			`ALTER TABLE items ADD COLUMN class_name TEXT`,
			`ALTER TABLE items ADD COLUMN phone_number TEXT`,
			`ALTER TABLE items ADD COLUMN image_url TEXT`,
		},
		postgres: []string{
			`ALTER TABLE items
			    ADD COLUMN roll_number  VARCHAR(255),
			    ADD COLUMN class_name   VARCHAR(255),
			    ADD COLUMN phone_number VARCHAR(255),
			    ADD COLUMN image_url    VARCHAR(255)`,
		},
	},
}

const versionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// advisoryLockID keys the PostgreSQL session lock held while migrating.
const advisoryLockID = 7_250_113

// lockRetryInterval is how often a blocked SQLite migration retries the file lock.
const lockRetryInterval = 100 * time.Millisecond

// querier is the subset shared by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Migrations returns the full migration history in order.
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// Migrate applies every pending migration, each in its own transaction, and
// returns the ones it applied. Concurrent runs against the same database wait
// on a lock: a sidecar file lock for SQLite, an advisory lock for PostgreSQL.
func Migrate(ctx context.Context, d *DB) ([]Migration, error) {
	conn, err := d.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	unlock, err := acquireLock(ctx, d, conn)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := conn.ExecContext(ctx, versionTable); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, d, conn)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := apply(ctx, d, conn, m); err != nil {
			return done, fmt.Errorf("running migration %d (%s): %w", m.Version, m.Name, err)
		}
		done = append(done, m)
	}

	return done, nil
}

// Status reports every known migration and whether it has been applied.
func Status(ctx context.Context, d *DB) ([]MigrationStatus, error) {
	if _, err := d.ExecContext(ctx, versionTable); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, d, d.DB)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationStatus{Version: m.Version, Name: m.Name}
		if at, ok := applied[m.Version]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Pending returns the migrations that have not been applied yet.
func Pending(ctx context.Context, d *DB) ([]Migration, error) {
	statuses, err := Status(ctx, d)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for i, st := range statuses {
		if !st.Applied {
			pending = append(pending, migrations[i])
		}
	}
	return pending, nil
}

func apply(ctx context.Context, d *DB, conn *sql.Conn, m Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.statements(d.Dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	query, args, err := d.Builder().
		Insert("schema_migrations").
		Columns("version", "name").
		Values(m.Version, m.Name).
		ToSql()
	if err != nil {
		return fmt.Errorf("building version insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}

	return tx.Commit()
}

func appliedVersions(ctx context.Context, d *DB, q querier) (map[int]time.Time, error) {
	query, args, err := d.Builder().
		Select("version", "applied_at").
		From("schema_migrations").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building version query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var raw any
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		at, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("migration %d: %w", version, err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

func acquireLock(ctx context.Context, d *DB, conn *sql.Conn) (func(), error) {
	switch {
	case d.Dialect == Postgres:
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
			return nil, fmt.Errorf("acquiring migration lock: %w", err)
		}
		return func() {
			conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
		}, nil

	case d.Path != "":
		fl := flock.New(d.Path + ".lock")
		locked, err := fl.TryLockContext(ctx, lockRetryInterval)
		if err != nil {
			return nil, fmt.Errorf("acquiring migration lock: %w", err)
		}
		if !locked {
			return nil, errors.New("acquiring migration lock: lock is held by another process")
		}
		return func() { fl.Unlock() }, nil

	default:
		return func() {}, nil
	}
}

// timestampLayouts are the text forms SQLite uses for CURRENT_TIMESTAMP.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// parseTimestamp accepts applied_at as either driver returns it.
func parseTimestamp(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("unexpected applied_at type %T", v)
	}

	for _, layout := range timestampLayouts {
		if at, err := time.Parse(layout, s); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable applied_at %q", s)
}
