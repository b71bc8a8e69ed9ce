package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend behind a DB.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DefaultMaxOpenConns is the PostgreSQL pool size used when none is configured.
const DefaultMaxOpenConns = 10

// DB is a database handle together with the dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect

	// Path is the SQLite database file, empty for in-memory and PostgreSQL databases.
	Path string
}

// Options tune the connection pool.
type Options struct {
	MaxOpenConns int
}

// Builder returns a squirrel statement builder using the dialect's placeholders.
func (d *DB) Builder() squirrel.StatementBuilderType {
	if d.Dialect == Postgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// LockClause returns the row locking suffix for SELECTs inside a transaction.
// SQLite has no row locks; its single writer connection serializes updates.
func (d *DB) LockClause() string {
	if d.Dialect == Postgres {
		return "FOR UPDATE"
	}
	return ""
}

// ParseDSN determines the dialect of a connection string and returns the
// driver-specific data source name.
//
// postgres:// and postgresql:// URLs select PostgreSQL. Anything else is a
// SQLite path, optionally prefixed with sqlite://.
func ParseDSN(dsn string) (Dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", dsn)
		}
		return SQLite, path, nil
	default:
		return SQLite, dsn, nil
	}
}

// Open opens the database described by dsn and configures the connection.
func Open(dsn string, opts Options) (*DB, error) {
	dialect, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case Postgres:
		return openPostgres(source, opts)
	default:
		return openSQLite(source)
	}
}

func openSQLite(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite allows a single writer, and every connection to
	// :memory: would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Set pragmas for performance and correctness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	d := &DB{DB: db, Dialect: SQLite}
	if !isMemory(path) {
		d.Path = strings.TrimPrefix(strings.SplitN(path, "?", 2)[0], "file:")
	}
	return d, nil
}

func openPostgres(dsn string, opts Options) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &DB{DB: db, Dialect: Postgres}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Verify checks the database is reachable within timeout.
func (d *DB) Verify(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging %s database: %w", d.Dialect, err)
	}
	return nil
}
