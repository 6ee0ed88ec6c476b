package rowstore

import (
	"context"
	"time"

	"github.com/campus-tech-club/roster-api/internal/domain"
)

// Patch is a partial update of one row. Nil fields are left untouched;
// UpdatedAt is always written.
type Patch[P any] struct {
	Payload      *P
	DisplayOrder *int

	UpdatedAt time.Time
}

// Store provides access to the rows of one ordered collection.
//
// A Store is bound to a single collection (table) when it is constructed.
// Select must return rows ordered by DisplayOrder ascending (ties by ID).
// Each single-row call is atomic; nothing spans rows.
type Store[P any] interface {
	Select(ctx context.Context) ([]domain.Entry[P], error)
	Insert(ctx context.Context, e domain.Entry[P]) (domain.Entry[P], error)
	Update(ctx context.Context, id domain.EntryID, p Patch[P]) (domain.Entry[P], error)
	Delete(ctx context.Context, id domain.EntryID) error
}

// ProfileStore is the row store shape used by both roster tables.
type ProfileStore = Store[domain.Profile]
