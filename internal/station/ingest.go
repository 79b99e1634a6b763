package station

import (
	"context"
	"time"

	"driverstation/internal/wire"
)

// ingestPackets is the single writer of telemetry/state (spec.md §3
// invariant (e)): it drains decoded UDP packets, accumulates telemetry,
// derives trip-time and lost-packet counts from sequence gaps, and
// publishes the resulting RobotState snapshot.
func (s *Station) ingestPackets(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-s.manager.Packets():
			if !ok {
				return
			}
			s.applyPacket(pkt)
		}
	}
}

func (s *Station) applyPacket(pkt wire.RioPacket) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	now := time.Now()
	if s.haveLastSeq {
		delta := pkt.Sequence - s.lastSeq // uint16 wraparound arithmetic
		if delta > 1 {
			s.lostPackets += uint64(delta - 1)
		}
		// Trip time has no echoed send timestamp to difference against, so
		// it is approximated as the wall-clock gap between consecutive
		// receives: under steady state that gap is the cadence interval
		// plus queuing/network jitter, which is what operators actually
		// want to see degrade.
		s.tripTimeMs = float64(now.Sub(s.lastRecvAt).Microseconds()) / 1000.0
	} else {
		s.haveLastSeq = true
	}
	s.lastSeq = pkt.Sequence
	s.lastRecvAt = now

	for _, tag := range pkt.Tags {
		switch tag.Kind {
		case wire.TagKindCANMetrics:
			s.telemetry.CAN = tag.CAN
		case wire.TagKindPDPData:
			s.telemetry.PDPCurrents = tag.PDPCurrents
		case wire.TagKindCPUUsage:
			s.telemetry.CPUUsage = tag.CPUUsage
		case wire.TagKindRAMUsage:
			s.telemetry.RAMUsageBytes = tag.RAMUsageBytes
		case wire.TagKindDiskFree:
			s.telemetry.FreeDiskBytes = tag.DiskFreeBytes
		case wire.TagKindJoystickOutput, wire.TagKindUnknown:
			// No published field carries rumble echo or unrecognized tags
			// today; decoded here so future consumers have somewhere to hook in.
		}
	}

	s.connected = true
	s.codeRunning = !pkt.Status.CodeInitializing
	s.voltage = pkt.Voltage
	s.status = pkt.Status

	snapshot := wire.RobotState{
		Connected:    s.connected,
		CodeRunning:  s.codeRunning,
		Voltage:      s.voltage,
		Status:       s.status,
		Telemetry:    s.telemetry,
		LastSequence: s.lastSeq,
		TripTimeMs:   s.tripTimeMs,
		LostPackets:  s.lostPackets,
	}
	s.state.Set(snapshot)
}

// ingestMessages drains decoded TCP messages, routing stdout lines to the
// stdout queue and everything else (plain messages, version info, error
// reports) to the message queue.
func (s *Station) ingestMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.manager.Messages():
			if !ok {
				return
			}
			s.routeMessage(msg)
		}
	}
}

func (s *Station) routeMessage(msg wire.TcpMessage) {
	if msg.Kind == wire.MessageKindStdout {
		s.stdout.Send(msg.Text)
	} else {
		s.messages.Send(msg)
	}
}
