// Package system provides the real clock implementation.
package system

import (
	"time"

	"github.com/JakeFAU/rosterctl/internal/clock"
)

var _ clock.Clock = Clock{}

// Clock implements clock.Clock using time.Now. Results are UTC; callers
// convert to a display zone themselves.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
