package rowstore

import (
	"testing"

	"github.com/campus-tech-club/roster-api/internal/adapters/contracttest"
	"github.com/campus-tech-club/roster-api/internal/adapters/postgres/testutil"
	"github.com/campus-tech-club/roster-api/internal/domain"
	rowstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

func TestContract_PostgresProfileRowStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "executives", "moderators")

	for _, c := range domain.Collections() {
		t.Run(string(c), func(t *testing.T) {
			contracttest.RunProfileRowStore(t, func(t *testing.T) (rowstoreport.ProfileStore, func()) {
				t.Helper()
				s, err := NewProfileStore(pool, c)
				if err != nil {
					t.Fatalf("NewProfileStore: %v", err)
				}
				return s, nil
			})
		})
	}
}

func TestNewProfileStore_RejectsUnknownCollection(t *testing.T) {
	t.Parallel()

	if _, err := NewProfileStore(nil, domain.CollectionName("members; DROP TABLE executives")); err == nil {
		t.Fatalf("expected error for unknown collection")
	}
}
