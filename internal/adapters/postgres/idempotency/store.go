package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store.
//
// Records are scoped by token issuer as well as subject, since subjects are
// only unique per issuer.
type Store struct {
	pool   *pgxpool.Pool
	issuer string
}

func NewStore(pool *pgxpool.Pool, issuer string) *Store {
	return &Store{pool: pool, issuer: issuer}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	var rec idempotency.Record
	err := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND subject_iss = $2
		  AND subject_sub = $3
		  AND method = $4
		  AND route = $5
		  AND body_hash = $6
	`, s.keyArgs(fp)...).Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	args := append(s.keyArgs(fp), rec.StatusCode, rec.ContentType, body, createdAt.UTC())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key, subject_iss, subject_sub, method, route, body_hash,
			status_code, content_type, body, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
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
