package practice

import (
	"testing"
	"time"

	"driverstation/internal/wire"
)

// fakeClock advances by step on every call, giving deterministic,
// monotonically increasing ticks without sleeping in tests.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestFastTimingReachesDoneThroughAutoAndTeleop(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Millisecond}
	s := NewScheduler(clock.now)
	s.Start(FastTiming())

	var sawAutoEnable, sawTeleopEnable bool
	var phases []Phase
	for i := 0; i < 10 && s.IsRunning(); i++ {
		tick := s.Poll()
		phases = append(phases, tick.Phase)
		if tick.Phase == PhaseAutonomous && tick.ShouldEnable && tick.Mode == wire.ModeAutonomous {
			sawAutoEnable = true
		}
		if tick.Phase == PhaseTeleop && tick.ShouldEnable && tick.Mode == wire.ModeTeleop {
			sawTeleopEnable = true
		}
	}
	if !sawAutoEnable {
		t.Errorf("never observed autonomous should_enable; phases=%v", phases)
	}
	if !sawTeleopEnable {
		t.Errorf("never observed teleop should_enable; phases=%v", phases)
	}
	if s.IsRunning() {
		t.Error("expected scheduler to stop running after Done")
	}
}

func TestAStopDuringAutonomous(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	s := NewScheduler(clock.now)
	s.Start(Timing{AutoSecs: 0.5}) // 5 ticks of 100ms to elapse

	tick := s.Poll() // Countdown(0) -> Autonomous
	if tick.Phase != PhaseAutonomous || !tick.ShouldEnable {
		t.Fatalf("expected autonomous should_enable on first tick, got %+v", tick)
	}

	s.AStop()

	sawDisable := false
	for i := 0; i < 4; i++ {
		tick = s.Poll()
		if tick.Phase != PhaseAutonomous {
			break
		}
		if !tick.ShouldDisable {
			t.Fatalf("expected should_disable while A-stop latched, got %+v", tick)
		}
		sawDisable = true
	}
	if !sawDisable {
		t.Fatal("never observed a should_disable tick during latched autonomous")
	}

	// Drive through Delay into Teleop.
	for i := 0; i < 10 && tick.Phase != PhaseTeleop; i++ {
		tick = s.Poll()
	}
	if tick.Phase != PhaseTeleop || !tick.ShouldEnable {
		t.Fatalf("expected teleop should_enable after A-stop period, got %+v", tick)
	}
}

func TestShouldDisableOnCountdownEntry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 10 * time.Millisecond}
	s := NewScheduler(clock.now)
	s.Start(Timing{CountdownSecs: 1})

	tick := s.Poll()
	if tick.Phase != PhaseCountdown {
		t.Fatalf("expected still in countdown on first tick, got %+v", tick)
	}
	if !tick.ShouldDisable {
		t.Errorf("expected should_disable on entry to countdown, got %+v", tick)
	}
}

func TestStopResetsAStop(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Millisecond}
	s := NewScheduler(clock.now)
	s.Start(Timing{AutoSecs: 10})
	s.Poll()
	s.AStop()
	s.Stop()
	if s.IsRunning() {
		t.Error("expected not running after Stop")
	}
	s.Start(Timing{AutoSecs: 10})
	tick := s.Poll()
	if !tick.ShouldEnable {
		t.Errorf("expected A-stop cleared after Stop+Start, got %+v", tick)
	}
}
