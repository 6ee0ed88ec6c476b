// Package sqlite opens the SQLite/libsql database used by the sqlite backend.
//
// Local files go through modernc.org/sqlite; libsql:// and wss:// URLs go
// through the Turso libsql client.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
)

// DriverFor picks the database/sql driver for dsn.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") || strings.HasPrefix(dsn, "https://") {
		return DriverLibSQL
	}
	return DriverSQLite
}

// Open connects to dsn, applies local pragmas and the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required for the sqlite backend")
	}
	driver := DriverFor(dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One writer; order saves fan out many concurrent updates.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		pragmas := []string{
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		}
		if !strings.Contains(dsn, ":memory:") {
			pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("exec %q: %w", p, err)
			}
		}
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS executives (
	id            TEXT PRIMARY KEY,
	display_order INTEGER NOT NULL DEFAULT 0,
	name          TEXT NOT NULL,
	position      TEXT NOT NULL,
	bio           TEXT NOT NULL,
	email         TEXT NOT NULL,
	image_url     TEXT,
	github_url    TEXT,
	linkedin_url  TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executives_display_order ON executives(display_order);

CREATE TABLE IF NOT EXISTS moderators (
	id            TEXT PRIMARY KEY,
	display_order INTEGER NOT NULL DEFAULT 0,
	name          TEXT NOT NULL,
	position      TEXT NOT NULL,
	bio           TEXT NOT NULL,
	email         TEXT NOT NULL,
	image_url     TEXT,
	github_url    TEXT,
	linkedin_url  TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderators_display_order ON moderators(display_order);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	idempotency_key TEXT    NOT NULL,
	subject_iss     TEXT    NOT NULL,
	subject_sub     TEXT    NOT NULL,
	method          TEXT    NOT NULL,
	route           TEXT    NOT NULL,
	body_hash       TEXT    NOT NULL,
	status_code     INTEGER NOT NULL,
	content_type    TEXT    NOT NULL,
	body            BLOB    NOT NULL,
	created_at      TEXT    NOT NULL,
	PRIMARY KEY (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a primary key or unique constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	// The libsql client only reports the message text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Timestamps are stored as RFC 3339 text so both drivers round-trip them identically.
const timeLayout = time.RFC3339Nano

func FormatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
