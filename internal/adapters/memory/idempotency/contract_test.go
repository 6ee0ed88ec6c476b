package idempotency

import (
	"testing"

	"github.com/campus-tech-club/roster-api/internal/adapters/contracttest"
	idempotencyport "github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

func TestContract_IdempotencyStore(t *testing.T) {
	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(), nil
	})
}
