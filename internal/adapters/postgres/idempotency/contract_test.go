package idempotency

import (
	"testing"

	"github.com/campus-tech-club/roster-api/internal/adapters/contracttest"
	"github.com/campus-tech-club/roster-api/internal/adapters/postgres/testutil"
	idempotencyport "github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "idempotency_keys")

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(pool, "https://issuer.test"), nil
	})
}
