package clock

import "time"

// Clock provides time to the application. Entry timestamps and
// idempotency records are stamped from it.
type Clock interface {
	Now() time.Time
}
