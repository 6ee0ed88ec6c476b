package idempotency

import (
	"context"
	"time"

	"github.com/campus-tech-club/roster-api/internal/domain"
)

// ReplayWindow is how long a key stays bound to its first payload and response.
const ReplayWindow = 24 * time.Hour

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a request for idempotency purposes: key, subject,
// method, concrete path (e.g. "/rosters/executives/entries") and body hash.
//
// Two records are kept per key. The meta record (empty BodyHash) stores the
// body hash the key was first used with; the response record stores the
// response to replay.
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string
	BodyHash string
}

// Meta returns the fingerprint of the meta record for fp's key.
func (fp Fingerprint) Meta() Fingerprint {
	fp.BodyHash = ""
	return fp
}

// Record is a stored meta entry or response.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Fresh reports whether rec is still inside the replay window at now.
func (r Record) Fresh(now time.Time) bool {
	return now.Sub(r.CreatedAt) < ReplayWindow
}

// Store persists idempotency records. Get returns ok=false for unknown
// fingerprints; callers decide freshness with Record.Fresh.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
