package domain

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	clockMu sync.RWMutex
	clock   clockwork.Clock = clockwork.NewRealClock()
)

// SetClock replaces the time source behind event and run timestamps. Pass
// nil to restore the wall clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clockMu.Lock()
	clock = c
	clockMu.Unlock()
}

// Now returns the current time in UTC from the configured clock.
func Now() time.Time {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock.Now().UTC()
}
