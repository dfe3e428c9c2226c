package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect doubles as the database/sql driver name.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var (
	ErrMissingDatabaseURL     = errors.New("database url is required")
	ErrUnsupportedDatabaseURL = errors.New("unsupported database url")
)

// ParseURL maps a connection string to its dialect and the DSN the driver
// expects. postgres:// and postgresql:// go to lib/pq; sqlite:<path> and
// file:<path> go to modernc sqlite.
func ParseURL(url string) (Dialect, string, error) {
	switch {
	case url == "":
		return "", "", ErrMissingDatabaseURL
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "sqlite:"):
		return SQLite, strings.TrimPrefix(url, "sqlite:"), nil
	case strings.HasPrefix(url, "file:"):
		return SQLite, url, nil
	}

	scheme, _, _ := strings.Cut(url, ":")
	return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedDatabaseURL, scheme)
}

// DB wraps the sqlx.DB for connection management
type DB struct {
	conn    *sqlx.DB
	dialect Dialect
}

// Open parses url, connects and pings the database.
func Open(ctx context.Context, url string) (*DB, error) {
	dialect, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if dialect == SQLite {
		// one writer at a time; also keeps :memory: databases on a single connection
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &DB{conn: conn, dialect: dialect}, nil
}

// New wraps an already opened connection.
func New(conn *sqlx.DB, dialect Dialect) *DB {
	return &DB{conn: conn, dialect: dialect}
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the DB connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Rebind converts ? placeholders to the dialect's bindvar style.
func (db *DB) Rebind(query string) string {
	return db.conn.Rebind(query)
}

// Exec executes a query written with ? placeholders
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.Rebind(query), args...)
}

// QueryRow executes a query that is expected to return at most one row
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.Rebind(query), args...)
}

// Get scans a single row into dest by column name.
func (db *DB) Get(ctx context.Context, dest any, query string, args ...any) error {
	return db.conn.GetContext(ctx, dest, db.Rebind(query), args...)
}

// Select scans all rows into the slice pointed to by dest.
func (db *DB) Select(ctx context.Context, dest any, query string, args ...any) error {
	return db.conn.SelectContext(ctx, dest, db.Rebind(query), args...)
}
