package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlitedb "github.com/campus-tech-club/roster-api/internal/adapters/sqlite"
	"github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

// Store is a SQLite/libsql implementation of idempotency.Store.
type Store struct {
	db     *sql.DB
	issuer string
}

func NewStore(db *sql.DB, issuer string) *Store {
	return &Store{db: db, issuer: issuer}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	var (
		rec       idempotency.Record
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = ?
		  AND subject_iss = ?
		  AND subject_sub = ?
		  AND method = ?
		  AND route = ?
		  AND body_hash = ?
	`, s.keyArgs(fp)...).Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if rec.CreatedAt, err = sqlitedb.ParseTime(createdAt); err != nil {
		return idempotency.Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	args := append(s.keyArgs(fp), rec.StatusCode, rec.ContentType, body, sqlitedb.FormatTime(createdAt))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key, subject_iss, subject_sub, method, route, body_hash,
			status_code, content_type, body, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
		DO UPDATE SET
			status_code = excluded.status_code,
			content_type = excluded.content_type,
			body = excluded.body,
			created_at = excluded.created_at
	`, args...)
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}

func (s *Store) keyArgs(fp idempotency.Fingerprint) []any {
	return []any{
		string(fp.Key),
		s.issuer,
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
	}
}
