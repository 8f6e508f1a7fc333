// Package loop drives simulation and rendering at independent rates using a
// fixed timestep accumulator.
package loop

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/math"
)

const (
	DefaultUpdatesPerSecond float64 = 240
	DefaultMaxFrameRate     float64 = 60
)

// Simulation is what a GameLoop drives. Update mutates state by exactly one
// fixed step; Render may only read it.
type Simulation interface {
	Update(step time.Duration) error
	Render(blend float32) error
}

// TickStats describes what a single Tick did.
type TickStats struct {
	Elapsed time.Duration
	Updates int
	Blend   float32
}

type GameLoop struct {
	clock       core.Clock
	step        time.Duration
	maxFrame    time.Duration
	previous    time.Duration
	accumulated time.Duration
}

func New(clock core.Clock, updatesPerSecond, maxFrameRate float64) *GameLoop {
	if updatesPerSecond <= 0 {
		updatesPerSecond = DefaultUpdatesPerSecond
	}
	if maxFrameRate <= 0 {
		maxFrameRate = DefaultMaxFrameRate
	}
	return &GameLoop{
		clock:    clock,
		step:     time.Duration(float64(time.Second) / updatesPerSecond),
		maxFrame: time.Duration(float64(time.Second) / maxFrameRate),
		previous: clock.Now(),
	}
}

// Step is the fixed simulation timestep.
func (l *GameLoop) Step() time.Duration {
	return l.step
}

// MaxFrameTime is the most wall time a single tick will feed the accumulator.
func (l *GameLoop) MaxFrameTime() time.Duration {
	return l.maxFrame
}

// Accumulated is the simulation time not yet consumed by Update. Always < Step
// between ticks.
func (l *GameLoop) Accumulated() time.Duration {
	return l.accumulated
}

// Reset forgets time that passed while the loop was not ticking, e.g. while the
// window was minimised.
func (l *GameLoop) Reset() {
	l.previous = l.clock.Now()
	l.accumulated = 0
}

// Tick runs as many fixed updates as the elapsed wall time allows, then renders
// once with the leftover fraction as blending factor.
func (l *GameLoop) Tick(sim Simulation) (TickStats, error) {
	now := l.clock.Now()
	elapsed := math.Clamp(now-l.previous, 0, l.maxFrame)
	l.previous = now
	l.accumulated += elapsed

	stats := TickStats{Elapsed: elapsed}
	for l.accumulated >= l.step {
		if err := sim.Update(l.step); err != nil {
			return stats, errors.Wrapf(err, "update %d", stats.Updates)
		}
		l.accumulated -= l.step
		stats.Updates++
	}

	stats.Blend = float32(float64(l.accumulated) / float64(l.step))
	if err := sim.Render(stats.Blend); err != nil {
		return stats, errors.Wrap(err, "render")
	}
	return stats, nil
}
