// Package conn implements the connection manager (spec.md §4.4): address
// resolution, UDP bind and 20ms-cadence send, TCP attach, liveness timeout
// and reconnect backoff. A Manager is owned by exactly one driver station
// and is never observed from outside it.
package conn

import (
	"context"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"driverstation/internal/wire"
)

// State is the connection manager's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateResolving
	StateConnected
	StateCodeRunning
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateResolving:
		return "resolving"
	case StateConnected:
		return "connected"
	case StateCodeRunning:
		return "code-running"
	default:
		return "unknown"
	}
}

const (
	udpListenPort  = 1150
	udpTargetPort  = 1110
	tcpTargetPort  = 1740
	cadence        = 20 * time.Millisecond
	livenessWindow = 1 * time.Second
	tcpDialTimeout = 3 * time.Second
	maxBackoff     = 2 * time.Second
	baseBackoff    = 100 * time.Millisecond
	udpReadBufSize = 2048
	tcpReadBufSize = 4096
)

// ControlSnapshot is the outbound tuple for a single transmission.
type ControlSnapshot struct {
	Control   wire.ControlFlags
	Request   wire.RequestFlags
	Alliance  wire.Alliance
	Joysticks []wire.JoystickData
}

// PacketSource composes the outbound tuple for each UDP transmission. It is
// called exactly once per cadence tick, synchronously, which is what lets a
// one-shot request pulse (reboot/restart code) be folded into persistent
// state and cleared inside the same call: spec.md §9 recommends moving the
// pulse into an overlay applied at packet-build time rather than storing it
// durably, precisely so "exactly one transmission carries the bit" falls out
// of the call discipline instead of needing to be coordinated with the
// cadence ticker from outside.
type PacketSource interface {
	BuildControlSnapshot() ControlSnapshot
}

// Manager drives the reconnect supervisor loop described in spec.md §4.4.
type Manager struct {
	teamMu  sync.Mutex
	team    int
	usbMode bool

	source PacketSource

	state   atomic.Int32
	attempt atomic.Int32

	packets  chan wire.RioPacket
	messages chan wire.TcpMessage
	tcpOut   chan []byte

	restart chan struct{}
}

// NewManager creates a manager targeting team with the given initial USB
// mode, pulling each outbound packet from source. Call Run in its own
// goroutine to start the supervisor loop.
func NewManager(team int, usbMode bool, source PacketSource) *Manager {
	m := &Manager{
		team:     team,
		usbMode:  usbMode,
		source:   source,
		packets:  make(chan wire.RioPacket, 32),
		messages: make(chan wire.TcpMessage, 32),
		tcpOut:   make(chan []byte, 8),
		restart:  make(chan struct{}, 1),
	}
	return m
}

// Packets returns the channel of successfully decoded inbound UDP packets.
func (m *Manager) Packets() <-chan wire.RioPacket { return m.packets }

// Messages returns the channel of successfully decoded inbound TCP messages.
func (m *Manager) Messages() <-chan wire.TcpMessage { return m.messages }

// State returns the current connection lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// SendTCP best-effort enqueues an outbound TCP frame (game data, joystick
// descriptors, match info). Dropped if the queue is full: the leg is
// advisory (spec.md §9). Frames queued while no TCP connection is attached
// wait in the queue and are written once one is.
func (m *Manager) SendTCP(data []byte) {
	select {
	case m.tcpOut <- data:
	default:
	}
}

// SetTeam changes the target team number, forcing a hard restart (spec.md
// §4.4 step 7): the manager drops its current connection and target and
// begins resolving again.
func (m *Manager) SetTeam(team int) {
	m.teamMu.Lock()
	m.team = team
	m.teamMu.Unlock()
	m.signalRestart()
}

// SetUSBMode changes whether the manager targets the robot over its USB
// RNDIS link; takes effect on the next resolve cycle.
func (m *Manager) SetUSBMode(usb bool) {
	m.teamMu.Lock()
	m.usbMode = usb
	m.teamMu.Unlock()
	m.signalRestart()
}

func (m *Manager) signalRestart() {
	select {
	case m.restart <- struct{}{}:
	default:
	}
}

func (m *Manager) target() (int, bool) {
	m.teamMu.Lock()
	defer m.teamMu.Unlock()
	return m.team, m.usbMode
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Run executes the reconnect supervisor loop until ctx is canceled. It is
// intended to be the body of the T_cm long-lived task (spec.md §5).
func (m *Manager) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m.drainRestartSignal()
		m.setState(StateResolving)

		team, usb := m.target()
		targetIP := resolveTarget(team, usb)

		udpConn, sendConn, err := bindUDP()
		if err != nil {
			log.Printf("conn: bind failed: %v", err)
			m.backoffSleep(ctx)
			continue
		}

		cycleCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup

		tcpConn := &tcpAttachment{target: net.JoinHostPort(targetIP, portStr(tcpTargetPort))}
		wg.Add(1)
		go func() {
			defer wg.Done()
			tcpConn.run(cycleCtx, m.messages, m.tcpOut)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.cadenceLoop(cycleCtx, sendConn, targetIP)
		}()

		// Blocks until liveness is lost, ctx is canceled, or a restart is
		// requested (team/USB-mode change).
		m.receiveLoop(cycleCtx, udpConn)

		cancel()
		udpConn.Close()
		sendConn.Close()
		wg.Wait()

		m.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		m.backoffSleep(ctx)
	}
}

func (m *Manager) drainRestartSignal() {
	select {
	case <-m.restart:
	default:
	}
}

func bindUDP() (recv, send *net.UDPConn, err error) {
	recv, err = net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: udpListenPort})
	if err != nil {
		return nil, nil, err
	}
	send, err = net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		recv.Close()
		return nil, nil, err
	}
	return recv, send, nil
}

func (m *Manager) cadenceLoop(ctx context.Context, sendConn *net.UDPConn, targetIP string) {
	dst, err := net.ResolveUDPAddr("udp", net.JoinHostPort(targetIP, portStr(udpTargetPort)))
	if err != nil {
		return
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	var seq uint16
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := m.source.BuildControlSnapshot()
			pkt := wire.OutboundPacket{
				Sequence:  seq,
				Control:   snap.Control,
				Request:   snap.Request,
				Alliance:  snap.Alliance,
				Joysticks: snap.Joysticks,
			}
			data := wire.EncodeControlPacket(pkt)
			if _, err := sendConn.WriteToUDP(data, dst); err != nil {
				log.Printf("conn: udp send failed: %v", err)
			}
			seq++ // wraps at 2^16 via uint16 overflow
		}
	}
}

// receiveLoop reads inbound UDP datagrams until the liveness window (1s
// rolling) lapses without a datagram, the context is canceled, or a restart
// is requested.
func (m *Manager) receiveLoop(ctx context.Context, udpConn *net.UDPConn) {
	buf := make([]byte, udpReadBufSize)
	resetReceived := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.restart:
			return
		default:
		}

		udpConn.SetReadDeadline(time.Now().Add(livenessWindow))
		n, _, err := udpConn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Printf("conn: liveness timeout, no datagram within %v", livenessWindow)
				return
			}
			return
		}

		pkt, ok := wire.DecodeRioPacket(buf[:n])
		if !ok {
			continue // malformed datagram: drop, count, continue (spec.md §7)
		}

		if !resetReceived {
			m.attempt.Store(0) // spec.md §9: reset backoff on first successful receive
			resetReceived = true
		}

		if pkt.Status.CodeInitializing {
			m.setState(StateConnected)
		} else {
			m.setState(StateCodeRunning)
		}

		select {
		case m.packets <- pkt:
		default:
			<-m.packets // shed oldest to keep the ingester from ever blocking the receive loop
			m.packets <- pkt
		}
	}
}

func (m *Manager) backoffSleep(ctx context.Context) {
	attempt := m.attempt.Add(1) - 1
	delay := backoffDelay(int(attempt))
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// backoffDelay returns min(100ms * 2^attempt, 2s).
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 20 { // guard against overflow; the cap bites long before this
		attempt = 20
	}
	d := baseBackoff * time.Duration(uint64(1)<<uint(attempt))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func portStr(p int) string {
	return strconv.Itoa(p)
}
