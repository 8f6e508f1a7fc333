package loop

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
)

type recordingSim struct {
	updates int
	renders []float32
	failAt  int
}

func (s *recordingSim) Update(step time.Duration) error {
	if s.failAt > 0 && s.updates+1 == s.failAt {
		return errors.New("boom")
	}
	s.updates++
	return nil
}

func (s *recordingSim) Render(blend float32) error {
	s.renders = append(s.renders, blend)
	return nil
}

func TestTickExactMultipleOfStep(t *testing.T) {
	for k := 0; k <= 4; k++ {
		clock := &core.ManualClock{}
		l := New(clock, 240, 60)
		sim := &recordingSim{}

		clock.Advance(l.Step() * time.Duration(k))
		stats, err := l.Tick(sim)
		if err != nil {
			t.Fatal(err)
		}
		if sim.updates != k || stats.Updates != k {
			t.Errorf("k=%d: %d updates", k, sim.updates)
		}
		if stats.Blend != 0 || l.Accumulated() != 0 {
			t.Errorf("k=%d: blend %v accumulated %v, want 0", k, stats.Blend, l.Accumulated())
		}
		if len(sim.renders) != 1 {
			t.Errorf("k=%d: %d renders", k, len(sim.renders))
		}
	}
}

func TestTickCapsCatchUp(t *testing.T) {
	clock := &core.ManualClock{}
	l := New(clock, 240, 60)
	sim := &recordingSim{}

	clock.Advance(10 * time.Second)
	stats, err := l.Tick(sim)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Elapsed != l.MaxFrameTime() {
		t.Fatalf("elapsed = %v, want cap %v", stats.Elapsed, l.MaxFrameTime())
	}
	maxUpdates := int(l.MaxFrameTime() / l.Step())
	if sim.updates > maxUpdates {
		t.Fatalf("%d updates, cap allows %d", sim.updates, maxUpdates)
	}
}

func TestTickAccumulatorStaysBelowStep(t *testing.T) {
	clock := &core.ManualClock{}
	l := New(clock, 240, 60)
	sim := &recordingSim{}

	for _, d := range []time.Duration{
		time.Millisecond, 7 * time.Millisecond, 3 * time.Millisecond, time.Second, 0, 13 * time.Millisecond,
	} {
		before := l.Accumulated()
		clock.Advance(d)
		stats, err := l.Tick(sim)
		if err != nil {
			t.Fatal(err)
		}
		if l.Accumulated() >= l.Step() {
			t.Fatalf("accumulated %v >= step %v", l.Accumulated(), l.Step())
		}
		if stats.Blend < 0 || stats.Blend >= 1 {
			t.Fatalf("blend %v out of [0,1)", stats.Blend)
		}
		grown := l.Accumulated() + time.Duration(stats.Updates)*l.Step() - before
		if grown > l.MaxFrameTime() {
			t.Fatalf("accumulator grew by %v, more than cap", grown)
		}
	}
}

func TestTickPartialStepBlend(t *testing.T) {
	clock := &core.ManualClock{}
	l := New(clock, 100, 10)
	sim := &recordingSim{}

	clock.Advance(l.Step() + l.Step()/2)
	stats, err := l.Tick(sim)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updates != 1 || stats.Blend != 0.5 {
		t.Fatalf("updates %d blend %v", stats.Updates, stats.Blend)
	}
}

func TestTickPropagatesUpdateError(t *testing.T) {
	clock := &core.ManualClock{}
	l := New(clock, 240, 60)
	sim := &recordingSim{failAt: 2}

	clock.Advance(3 * l.Step())
	if _, err := l.Tick(sim); err == nil {
		t.Fatal("expected update error")
	}
	if len(sim.renders) != 0 {
		t.Fatal("render ran after failed update")
	}
}

func TestResetDropsIdleTime(t *testing.T) {
	clock := &core.ManualClock{}
	l := New(clock, 240, 60)
	sim := &recordingSim{}

	clock.Advance(time.Hour)
	l.Reset()
	stats, _ := l.Tick(sim)
	if stats.Updates != 0 || stats.Elapsed != 0 {
		t.Fatalf("stats after reset = %+v", stats)
	}
}
