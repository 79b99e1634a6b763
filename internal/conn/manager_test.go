package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"driverstation/internal/wire"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{5, maxBackoff},
		{20, maxBackoff},
	}
	for _, c := range cases {
		if got := backoffDelay(c.attempt); got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoffDelayNegativeAttemptClampsToBase(t *testing.T) {
	if got := backoffDelay(-5); got != baseBackoff {
		t.Errorf("backoffDelay(-5) = %v, want %v", got, baseBackoff)
	}
}

type fakeSource struct {
	snap ControlSnapshot
}

func (f *fakeSource) BuildControlSnapshot() ControlSnapshot { return f.snap }

// TestCadenceLoopSendsEncodedPackets binds a fake robot listener on the
// well-known target port and verifies the first control packet cadenceLoop
// sends is correctly encoded.
func TestCadenceLoopSendsEncodedPackets(t *testing.T) {
	robot, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: udpTargetPort})
	if err != nil {
		t.Skipf("could not bind fixed test port %d: %v", udpTargetPort, err)
	}
	defer robot.Close()

	send, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		t.Fatalf("listen send socket: %v", err)
	}
	defer send.Close()

	m := &Manager{source: &fakeSource{snap: ControlSnapshot{
		Control:  wire.ControlFlags{Enabled: true, Mode: wire.ModeTeleop},
		Alliance: wire.Alliance{Color: wire.Blue, Station: 2},
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.cadenceLoop(ctx, send, "127.0.0.1")

	robot.SetReadDeadline(time.Now().Add(1 * time.Second))
	buf := make([]byte, 256)
	n, _, err := robot.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected a control packet within the deadline: %v", err)
	}

	if buf[2] != wire.ProtocolVersion {
		t.Fatalf("unexpected protocol version byte %#x", buf[2])
	}
	wantControl := wire.ControlFlags{Enabled: true, Mode: wire.ModeTeleop}.EncodeByte()
	if buf[3] != wantControl {
		t.Fatalf("control byte = %#x, want %#x", buf[3], wantControl)
	}
	wantAlliance := wire.Alliance{Color: wire.Blue, Station: 2}.ToByte()
	if buf[5] != wantAlliance {
		t.Fatalf("alliance byte = %#x, want %#x", buf[5], wantAlliance)
	}
	if n < 6 {
		t.Fatalf("packet too short: %d bytes", n)
	}
}

func TestNewManagerHasChannelsAndStartsDisconnected(t *testing.T) {
	m := NewManager(1868, false, &fakeSource{})
	if m.Packets() == nil || m.Messages() == nil {
		t.Fatalf("expected non-nil channels from a fresh Manager")
	}
	if m.State() != StateDisconnected {
		t.Fatalf("expected initial state Disconnected, got %v", m.State())
	}
}

func TestSendTCPNeverBlocksWhenQueueFull(t *testing.T) {
	m := NewManager(1868, false, &fakeSource{})
	for i := 0; i < 100; i++ {
		m.SendTCP([]byte{byte(i)})
	}
	// No assertion beyond "this returns" — SendTCP must never block the
	// caller even once the bounded tcpOut queue is saturated.
}

func TestSetTeamAndSetUSBModeSignalRestart(t *testing.T) {
	m := NewManager(1868, false, &fakeSource{})
	m.SetTeam(254)
	team, usb := m.target()
	if team != 254 {
		t.Fatalf("expected team updated to 254, got %d", team)
	}
	m.SetUSBMode(true)
	_, usb = m.target()
	if !usb {
		t.Fatalf("expected usbMode updated to true")
	}
	select {
	case <-m.restart:
	default:
		t.Fatalf("expected a pending restart signal")
	}
}
