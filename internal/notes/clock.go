package notes

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time so note timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current UTC time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces note ids.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random v4 UUIDs, which keeps ids unique across devices
// without coordination.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
