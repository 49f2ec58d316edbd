package service

import (
	"time"

	"github.com/confirming/marketplace/internal/domain"
)

// Clock supplies the current instant and the business calendar date
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock reads the wall clock and computes dates in a business time zone
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a clock for the given business location
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

func (c *SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the calendar date in the business location
func (c *SystemClock) Today() time.Time {
	return domain.DateOf(time.Now().In(c.loc))
}

// FixedClock always returns the same instant. Useful in tests and replays.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

func (c FixedClock) Today() time.Time {
	return domain.DateOf(c.At)
}
