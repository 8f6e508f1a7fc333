package core

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock reports monotonic time since some fixed origin.
type Clock interface {
	Now() time.Duration
}

// HighResClock is the wall clock used by the engine loop.
type HighResClock struct {
	startTime time.Duration
	elapsed   time.Duration
	running   bool
}

func NewClock() *HighResClock {
	return &HighResClock{}
}

func (c *HighResClock) Now() time.Duration {
	return hrtime.Now()
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *HighResClock) Update() {
	if c.running {
		c.elapsed = hrtime.Since(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *HighResClock) Start() {
	c.startTime = hrtime.Now()
	c.elapsed = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *HighResClock) Stop() {
	c.running = false
}

func (c *HighResClock) Elapsed() time.Duration {
	return c.elapsed
}

// ManualClock only moves when told to.
type ManualClock struct {
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.now += d
}
