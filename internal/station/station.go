// Package station implements the driver station command surface (spec.md
// §4.5): composing the outbound control tuple from operator commands,
// ingesting inbound telemetry into a published RobotState snapshot, and
// fanning out stdout lines and TCP messages to subscribers without ever
// blocking the connection manager that feeds it.
package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driverstation/internal/conn"
	"driverstation/internal/observer"
	"driverstation/internal/practice"
	"driverstation/internal/wire"
)

const (
	stdoutQueueDepth  = 64
	messageQueueDepth = 32
)

// Station is the driver station. It owns a connection manager and a
// practice-match scheduler, and is the single writer of the published
// RobotState (spec.md §3 invariant (e)).
type Station struct {
	mu        sync.Mutex
	estop     bool
	enabled   bool
	mode      wire.Mode
	alliance  wire.Alliance
	joysticks []wire.JoystickData
	gameData  string

	pulseMu            sync.Mutex
	pendingReboot      bool
	pendingRestartCode bool

	descMu      sync.Mutex
	descriptors map[uint8]wire.JoystickDescriptor

	ingestMu      sync.Mutex
	telemetry     wire.TelemetryData
	haveLastSeq   bool
	lastSeq       uint16
	lastRecvAt    time.Time
	lostPackets   uint64
	tripTimeMs    float64
	connected     bool
	codeRunning   bool
	voltage       wire.BatteryVoltage
	status        wire.StatusFlags

	manager       *conn.Manager
	scheduler     *practice.Scheduler
	defaultTiming practice.Timing

	state    observer.Latest[wire.RobotState]
	stdout   *observer.Dropping[string]
	messages *observer.Dropping[wire.TcpMessage]

	startOnce sync.Once
}

// New creates a driver station targeting team, with an initial alliance
// assignment and USB-mode preference. defaultTiming is the practice-match
// timing supplied by the config collaborator (spec.md §6); it is used by
// StartPracticeDefault and is otherwise just a default an explicit
// StartPractice call may override. Call Run to start it.
func New(team int, alliance wire.Alliance, usbMode bool, defaultTiming practice.Timing) *Station {
	s := &Station{
		alliance:      alliance,
		mode:          wire.ModeTeleop,
		descriptors:   map[uint8]wire.JoystickDescriptor{},
		scheduler:     practice.NewScheduler(time.Now),
		defaultTiming: defaultTiming,
		stdout:        observer.NewDropping[string](stdoutQueueDepth),
		messages:      observer.NewDropping[wire.TcpMessage](messageQueueDepth),
	}
	s.manager = conn.NewManager(team, usbMode, s)
	return s
}

// Run starts the connection manager and the packet/message ingesters and
// blocks until ctx is canceled. It must be called exactly once.
func (s *Station) Run(ctx context.Context) {
	s.startOnce.Do(func() {
		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); s.manager.Run(ctx) }()
		go func() { defer wg.Done(); s.ingestPackets(ctx) }()
		go func() { defer wg.Done(); s.ingestMessages(ctx) }()
		wg.Wait()
	})
}

// BuildControlSnapshot implements conn.PacketSource. Called exactly once
// per UDP cadence tick; folds the practice scheduler's enable/disable
// decision and the one-shot reboot/restart-code pulse into the snapshot,
// clearing the pulse before returning so it rides exactly one transmission.
func (s *Station) BuildControlSnapshot() conn.ControlSnapshot {
	tick := s.scheduler.Poll()

	// A tick carries no signals unless a match was running when it was
	// polled, so the entry-to-Done disable is applied even though the
	// scheduler has already stopped running by then.
	s.mu.Lock()
	if tick.ShouldEnable {
		s.enabled = true
	}
	if tick.ShouldDisable {
		s.enabled = false
	}
	if tick.ModeValid {
		s.mode = tick.Mode
	}
	ctrl := wire.ControlFlags{
		EStop:   s.estop,
		Enabled: s.enabled && !s.estop,
		Mode:    s.mode,
	}
	alliance := s.alliance
	joysticks := s.joysticks
	s.mu.Unlock()

	s.pulseMu.Lock()
	req := wire.RequestFlags{RebootRoborio: s.pendingReboot, RestartCode: s.pendingRestartCode}
	s.pendingReboot = false
	s.pendingRestartCode = false
	s.pulseMu.Unlock()

	return conn.ControlSnapshot{
		Control:   ctrl,
		Request:   req,
		Alliance:  alliance,
		Joysticks: joysticks,
	}
}

// Enable arms the robot. A no-op while e-stopped (spec.md §4.5 invariant:
// Enabled never takes effect while EStop is latched).
func (s *Station) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.estop {
		s.enabled = true
	}
}

// Disable drops the enabled bit. Always available, including while e-stopped.
func (s *Station) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

// EStop latches the emergency stop and disables in the same step. Clearing
// it back out requires ClearEStop followed by a fresh Enable.
func (s *Station) EStop() {
	s.mu.Lock()
	s.estop = true
	s.enabled = false
	s.mu.Unlock()
	s.scheduler.AStop()
}

// ClearEStop unlatches the emergency stop. It does not re-enable the robot.
func (s *Station) ClearEStop() {
	s.mu.Lock()
	s.estop = false
	s.mu.Unlock()
}

// SetMode changes the operating mode advertised to the robot.
func (s *Station) SetMode(m wire.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetAlliance changes the alliance color/station assignment.
func (s *Station) SetAlliance(a wire.Alliance) {
	s.mu.Lock()
	s.alliance = a
	s.mu.Unlock()
}

// SetTeam retargets the connection manager at a new team number, forcing a
// hard reconnect.
func (s *Station) SetTeam(team int) {
	s.manager.SetTeam(team)
}

// SetUSBMode switches between the USB RNDIS link and mDNS/static resolution.
func (s *Station) SetUSBMode(usb bool) {
	s.manager.SetUSBMode(usb)
}

// SetJoysticks replaces the joystick frames sent on the next cadence tick
// and, for any slot whose shape (axis/button/POV counts) changed since the
// last call, pushes a fresh JoystickDescriptor TCP message (spec.md
// supplemented feature: descriptors are cached and only re-sent on change).
func (s *Station) SetJoysticks(js []wire.JoystickData) {
	s.mu.Lock()
	s.joysticks = js
	s.mu.Unlock()

	s.descMu.Lock()
	for i, j := range js {
		slot := uint8(i)
		desc := wire.DescriptorFor(slot, fmt.Sprintf("Joystick %d", slot), j)
		if prev, ok := s.descriptors[slot]; ok && prev == desc {
			continue
		}
		s.descriptors[slot] = desc
		s.manager.SendTCP(wire.EncodeJoystickDescriptor(desc))
	}
	s.descMu.Unlock()
}

// SetGameData stores the game-specific data string and pushes it to the
// robot over the advisory TCP channel.
func (s *Station) SetGameData(data string) {
	s.mu.Lock()
	s.gameData = data
	s.mu.Unlock()
	s.manager.SendTCP(wire.EncodeGameData(data))
}

// SendMatchInfo pushes match identification (name, match type) to the robot.
func (s *Station) SendMatchInfo(name string, matchType uint8) {
	s.manager.SendTCP(wire.EncodeMatchInfo(name, matchType))
}

// RebootRoborio requests a roboRIO reboot on the next outbound transmission
// only (pulse semantics: see BuildControlSnapshot).
func (s *Station) RebootRoborio() {
	s.pulseMu.Lock()
	s.pendingReboot = true
	s.pulseMu.Unlock()
}

// RestartCode requests a robot code restart on the next outbound
// transmission only.
func (s *Station) RestartCode() {
	s.pulseMu.Lock()
	s.pendingRestartCode = true
	s.pulseMu.Unlock()
}

// StartPractice begins a practice-match cycle with the given timing.
func (s *Station) StartPractice(t practice.Timing) {
	s.scheduler.Start(t)
}

// StartPracticeDefault begins a practice-match cycle using the timing
// supplied by the config collaborator at construction time.
func (s *Station) StartPracticeDefault() {
	s.scheduler.Start(s.defaultTiming)
}

// StopPractice aborts the running practice-match cycle, if any.
func (s *Station) StopPractice() {
	s.scheduler.Stop()
}

// ConnectionState reports the connection manager's current lifecycle state.
func (s *Station) ConnectionState() conn.State {
	return s.manager.State()
}

// SubscribeState returns the most recently published RobotState, or
// ok=false if no packet has been ingested yet.
func (s *Station) SubscribeState() (wire.RobotState, bool) {
	return s.state.Get()
}

// TakeStdout drains one queued robot stdout line, if any are pending.
func (s *Station) TakeStdout() (string, bool) {
	select {
	case line := <-s.stdout.Chan():
		return line, true
	default:
		return "", false
	}
}

// TakeMessage drains one queued TCP message (error reports, version info,
// non-stdout text), if any are pending.
func (s *Station) TakeMessage() (wire.TcpMessage, bool) {
	select {
	case msg := <-s.messages.Chan():
		return msg, true
	default:
		return wire.TcpMessage{}, false
	}
}
