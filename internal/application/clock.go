package application

import (
	"time"

	"github.com/google/uuid"
)

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T. Used by tests and the CLI dry runs.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// IDGenerator hands out record identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }
