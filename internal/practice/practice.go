// Package practice implements the deterministic practice-match scheduler: a
// phase timer driving enable/disable/mode transitions with A-stop semantics,
// driven by an externally supplied tick (spec.md §4.6).
package practice

import (
	"sync"
	"time"

	"driverstation/internal/wire"
)

// Phase is one state of the practice match timeline.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountdown
	PhaseAutonomous
	PhaseDelay
	PhaseTeleop
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountdown:
		return "countdown"
	case PhaseAutonomous:
		return "autonomous"
	case PhaseDelay:
		return "delay"
	case PhaseTeleop:
		return "teleop"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Timing is the set of phase durations captured at Start.
type Timing struct {
	CountdownSecs float64
	AutoSecs      float64
	DelaySecs     float64
	TeleopSecs    float64
}

// FastTiming is a zero-duration Timing, useful for driving a scheduler
// through every phase in a handful of ticks (matches the "fast timing"
// scenario in spec.md §8).
func FastTiming() Timing {
	return Timing{}
}

// Tick is the reducer's output for a single Poll call.
type Tick struct {
	Phase         Phase
	Elapsed       time.Duration
	Remaining     time.Duration
	ShouldEnable  bool
	ShouldDisable bool
	// Mode is only meaningful when ShouldEnable fires on entry to
	// Autonomous or Teleop; it is the zero Mode otherwise.
	Mode      wire.Mode
	ModeValid bool
}

// Scheduler drives the practice-match phase timeline from an external tick
// source. Every method takes the scheduler's mutex, so Poll (from the
// cadence loop) and Start/Stop/AStop (from command callers, see
// internal/station) may be called from different goroutines.
type Scheduler struct {
	mu sync.Mutex

	timing    Timing
	running   bool
	phase     Phase
	prevPhase Phase // phase as of the previous Poll, for transition detection
	phaseFrom time.Time
	now       func() time.Time

	aStopLatched bool
}

// NewScheduler creates an empty, idle scheduler. now defaults to time.Now
// if nil; tests can inject a deterministic clock.
func NewScheduler(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{phase: PhaseIdle, prevPhase: PhaseIdle, now: now}
}

// Start snapshots the phase timings and begins the countdown phase.
// prevPhase is reset to Idle regardless of what phase a prior match ended on,
// so the first Poll call always reports a transition into Countdown.
func (s *Scheduler) Start(t Timing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = t
	s.running = true
	s.aStopLatched = false
	s.phase = PhaseCountdown
	s.prevPhase = PhaseIdle
	s.phaseFrom = s.now()
}

// Stop resets the scheduler to Idle and clears A-stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.phase = PhaseIdle
	s.aStopLatched = false
}

// IsRunning reports whether the scheduler has an active match (i.e. has not
// reached Done and had Stop called, and is not sitting Idle).
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// AStop latches the autonomous-stop flag. It only has effect while the
// current phase is Autonomous; the latch is cleared automatically on entry
// to Teleop.
func (s *Scheduler) AStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseAutonomous {
		s.aStopLatched = true
	}
}

func (t Timing) duration(p Phase) time.Duration {
	switch p {
	case PhaseCountdown:
		return secs(t.CountdownSecs)
	case PhaseAutonomous:
		return secs(t.AutoSecs)
	case PhaseDelay:
		return secs(t.DelaySecs)
	case PhaseTeleop:
		return secs(t.TeleopSecs)
	default:
		return 0
	}
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func nextPhase(p Phase) Phase {
	switch p {
	case PhaseCountdown:
		return PhaseAutonomous
	case PhaseAutonomous:
		return PhaseDelay
	case PhaseDelay:
		return PhaseTeleop
	case PhaseTeleop:
		return PhaseDone
	default:
		return PhaseDone
	}
}

// Poll advances the scheduler by one tick (expected ~20ms cadence but
// tolerant of jitter) and returns the resulting Tick. It is a no-op
// returning the current Idle/Done state when the scheduler is not running.
// At most one phase advance happens per call, matching the original
// reference scheduler's tick(): should_enable/should_disable/mode are
// derived from whether the phase differs from the one reported by the
// previous Poll (transitioning), not from whether an advance happened
// during this particular call — that is what makes the very first Poll
// after Start report the transition into Countdown.
func (s *Scheduler) Poll() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return Tick{Phase: s.phase}
	}

	now := s.now()
	elapsed := now.Sub(s.phaseFrom)
	dur := s.timing.duration(s.phase)

	if s.phase != PhaseDone && elapsed >= dur {
		s.phase = nextPhase(s.phase)
		s.phaseFrom = now
		elapsed = 0
		dur = s.timing.duration(s.phase)
		if s.phase == PhaseTeleop {
			s.aStopLatched = false
		}
		if s.phase == PhaseDone {
			s.running = false
		}
	}

	tick := Tick{Phase: s.phase, Elapsed: elapsed, Remaining: dur - elapsed}
	if dur == 0 {
		tick.Remaining = 0
	}

	transitioning := s.phase != s.prevPhase

	switch s.phase {
	case PhaseAutonomous:
		if transitioning {
			tick.ShouldEnable = !s.aStopLatched
			tick.Mode, tick.ModeValid = wire.ModeAutonomous, true
		}
		if s.aStopLatched {
			tick.ShouldDisable = true
			tick.ShouldEnable = false
		}
	case PhaseTeleop:
		if transitioning {
			tick.ShouldEnable = true
			tick.Mode, tick.ModeValid = wire.ModeTeleop, true
		}
	case PhaseCountdown, PhaseDelay, PhaseDone:
		if transitioning {
			tick.ShouldDisable = true
		}
	}

	s.prevPhase = s.phase
	return tick
}
