package clock

import (
	"time"

	clockport "github.com/campus-tech-club/roster-api/internal/ports/out/clock"
)

var _ clockport.Clock = SystemClock{}

// SystemClock reads the wall clock in UTC. Row stores persist what it returns.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
