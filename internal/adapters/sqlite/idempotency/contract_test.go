package idempotency

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/campus-tech-club/roster-api/internal/adapters/contracttest"
	sqlitedb "github.com/campus-tech-club/roster-api/internal/adapters/sqlite"
	idempotencyport "github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

func TestContract_SQLiteIdempotencyStore(t *testing.T) {
	t.Parallel()

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		db, err := sqlitedb.Open(context.Background(), filepath.Join(t.TempDir(), "idem.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return NewStore(db, "https://issuer.test"), func() { _ = db.Close() }
	})
}
