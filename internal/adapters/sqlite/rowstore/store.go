package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedb "github.com/campus-tech-club/roster-api/internal/adapters/sqlite"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

// ProfileStore is a SQLite/libsql implementation of rowstore.ProfileStore
// bound to one roster table.
type ProfileStore struct {
	db    *sql.DB
	table string
}

func NewProfileStore(db *sql.DB, collection domain.CollectionName) (*ProfileStore, error) {
	c, ok := domain.ParseCollectionName(string(collection))
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return &ProfileStore{db: db, table: `"` + string(c) + `"`}, nil
}

const profileColumns = `id, display_order, name, position, bio, email, image_url, github_url, linkedin_url, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func (s *ProfileStore) Select(ctx context.Context) ([]domain.Entry[domain.Profile], error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM `+s.table+` ORDER BY display_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
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
	if e.ID == "" {
		return domain.Entry[domain.Profile]{}, errors.New("empty entry id")
	}
	p := e.Payload
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.table+` (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+profileColumns,
		string(e.ID),
		e.DisplayOrder,
		p.Name,
		p.Position,
		p.Bio,
		p.Email,
		p.ImageURL,
		p.GithubURL,
		p.LinkedInURL,
		sqlitedb.FormatTime(e.CreatedAt),
		sqlitedb.FormatTime(e.UpdatedAt),
	)
	out, err := scanProfile(row)
	if err != nil {
		if sqlitedb.IsUniqueViolation(err) {
			return domain.Entry[domain.Profile]{}, rowstore.ErrAlreadyExists
		}
		return domain.Entry[domain.Profile]{}, err
	}
	return out, nil
}

func (s *ProfileStore) Update(ctx context.Context, id domain.EntryID, patch rowstore.Patch[domain.Profile]) (domain.Entry[domain.Profile], error) {
	var order sql.NullInt64
	if patch.DisplayOrder != nil {
		order = sql.NullInt64{Int64: int64(*patch.DisplayOrder), Valid: true}
	}
	updatedAt := sqlitedb.FormatTime(patch.UpdatedAt)

	var row *sql.Row
	if p := patch.Payload; p != nil {
		row = s.db.QueryRowContext(ctx, `
			UPDATE `+s.table+`
			SET name = ?,
			    position = ?,
			    bio = ?,
			    email = ?,
			    image_url = ?,
			    github_url = ?,
			    linkedin_url = ?,
			    display_order = COALESCE(?, display_order),
			    updated_at = ?
			WHERE id = ?
			RETURNING `+profileColumns,
			p.Name,
			p.Position,
			p.Bio,
			p.Email,
			p.ImageURL,
			p.GithubURL,
			p.LinkedInURL,
			order,
			updatedAt,
			string(id),
		)
	} else {
		row = s.db.QueryRowContext(ctx, `
			UPDATE `+s.table+`
			SET display_order = COALESCE(?, display_order),
			    updated_at = ?
			WHERE id = ?
			RETURNING `+profileColumns,
			order,
			updatedAt,
			string(id),
		)
	}

	out, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry[domain.Profile]{}, rowstore.ErrNotFound
		}
		return domain.Entry[domain.Profile]{}, err
	}
	return out, nil
}

func (s *ProfileStore) Delete(ctx context.Context, id domain.EntryID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rowstore.ErrNotFound
	}
	return nil
}

func scanProfile(row scanner) (domain.Entry[domain.Profile], error) {
	var (
		e                  domain.Entry[domain.Profile]
		id                 string
		createdAt, updated string
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
	var err error
	e.ID = domain.EntryID(id)
	if e.CreatedAt, err = sqlitedb.ParseTime(createdAt); err != nil {
		return domain.Entry[domain.Profile]{}, err
	}
	if e.UpdatedAt, err = sqlitedb.ParseTime(updated); err != nil {
		return domain.Entry[domain.Profile]{}, err
	}
	return e, nil
}
