package rowstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/campus-tech-club/roster-api/internal/adapters/postgres"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

// ProfileStore is a Postgres implementation of rowstore.ProfileStore bound to
// one roster table.
type ProfileStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewProfileStore returns a store for the table backing collection.
func NewProfileStore(pool *pgxpool.Pool, collection domain.CollectionName) (*ProfileStore, error) {
	// Table names cannot be bound as parameters; only known collections are accepted.
	if _, ok := domain.ParseCollectionName(string(collection)); !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return &ProfileStore{pool: pool, table: pgx.Identifier{string(collection)}.Sanitize()}, nil
}

const profileColumns = `id, display_order, name, position, bio, email, image_url, github_url, linkedin_url, created_at, updated_at`

func (s *ProfileStore) Select(ctx context.Context) ([]domain.Entry[domain.Profile], error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM `+s.table+` ORDER BY display_order ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Entry[domain.Profile]{}
	for rows.Next() {
		e, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ProfileStore) Insert(ctx context.Context, e domain.Entry[domain.Profile]) (domain.Entry[domain.Profile], error) {
	if s.pool == nil {
		return domain.Entry[domain.Profile]{}, errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return domain.Entry[domain.Profile]{}, fmt.Errorf("invalid entry id: %w", err)
	}
	p := e.Payload
	row := s.pool.QueryRow(ctx, `
		INSERT INTO `+s.table+` (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+profileColumns,
		id,
		e.DisplayOrder,
		p.Name,
		p.Position,
		p.Bio,
		p.Email,
		p.ImageURL,
		p.GithubURL,
		p.LinkedInURL,
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	out, err := scanProfile(row)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return domain.Entry[domain.Profile]{}, rowstore.ErrAlreadyExists
		}
		return domain.Entry[domain.Profile]{}, err
	}
	return out, nil
}

func (s *ProfileStore) Update(ctx context.Context, id domain.EntryID, patch rowstore.Patch[domain.Profile]) (domain.Entry[domain.Profile], error) {
	if s.pool == nil {
		return domain.Entry[domain.Profile]{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		// Not a UUID, so no such row.
		return domain.Entry[domain.Profile]{}, rowstore.ErrNotFound
	}

	var (
		row       pgx.Row
		updatedAt = patch.UpdatedAt.UTC()
	)
	switch {
	case patch.Payload != nil:
		p := patch.Payload
		row = s.pool.QueryRow(ctx, `
			UPDATE `+s.table+`
			SET name = $2,
			    position = $3,
			    bio = $4,
			    email = $5,
			    image_url = $6,
			    github_url = $7,
			    linkedin_url = $8,
			    display_order = COALESCE($9, display_order),
			    updated_at = $10
			WHERE id = $1
			RETURNING `+profileColumns,
			uid,
			p.Name,
			p.Position,
			p.Bio,
			p.Email,
			p.ImageURL,
			p.GithubURL,
			p.LinkedInURL,
			patch.DisplayOrder,
			updatedAt,
		)
	default:
		row = s.pool.QueryRow(ctx, `
			UPDATE `+s.table+`
			SET display_order = COALESCE($2, display_order),
			    updated_at = $3
			WHERE id = $1
			RETURNING `+profileColumns,
			uid,
			patch.DisplayOrder,
			updatedAt,
		)
	}

	out, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entry[domain.Profile]{}, rowstore.ErrNotFound
		}
		return domain.Entry[domain.Profile]{}, err
	}
	return out, nil
}

func (s *ProfileStore) Delete(ctx context.Context, id domain.EntryID) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return rowstore.ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return rowstore.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (domain.Entry[domain.Profile], error) {
	var (
		e                  domain.Entry[domain.Profile]
		id                 uuid.UUID
		createdAt, updated time.Time
	)
	p := &e.Payload
	if err := row.Scan(
		&id,
		&e.DisplayOrder,
		&p.Name,
		&p.Position,
		&p.Bio,
		&p.Email,
		&p.ImageURL,
		&p.GithubURL,
		&p.LinkedInURL,
		&createdAt,
		&updated,
	); err != nil {
		return domain.Entry[domain.Profile]{}, err
	}
	e.ID = domain.EntryID(id.String())
	e.CreatedAt = createdAt.UTC()
	e.UpdatedAt = updated.UTC()
	return e, nil
}
