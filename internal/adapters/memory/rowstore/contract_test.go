package rowstore

import (
	"testing"

	"github.com/campus-tech-club/roster-api/internal/adapters/contracttest"
	rowstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

func TestContract_ProfileRowStore(t *testing.T) {
	contracttest.RunProfileRowStore(t, func(t *testing.T) (rowstoreport.ProfileStore, func()) {
		t.Helper()
		return NewProfileStore(), nil
	})
}
