// Package wire defines the bit-exact wire types shared by the UDP control/telemetry
// codec and the TCP message codec: modes, alliance assignment, control/status/request
// flag bytes, battery voltage, joystick frames and the aggregated robot telemetry and
// state snapshot.
package wire

// Mode is the robot operating mode, encoded as a two-bit field on the wire.
type Mode uint8

const (
	ModeTeleop Mode = iota
	ModeTest
	ModeAutonomous
)

func (m Mode) String() string {
	switch m {
	case ModeTeleop:
		return "teleop"
	case ModeTest:
		return "test"
	case ModeAutonomous:
		return "autonomous"
	default:
		return "invalid"
	}
}

// bits returns the two-bit wire encoding for m.
func (m Mode) bits() uint8 {
	return uint8(m) & 0x03
}

// modeFromBits decodes the two-bit mode field. The 0b11 pattern is invalid.
func modeFromBits(b uint8) (Mode, bool) {
	switch b & 0x03 {
	case 0:
		return ModeTeleop, true
	case 1:
		return ModeTest, true
	case 2:
		return ModeAutonomous, true
	default:
		return 0, false
	}
}

// AllianceColor is the match alliance color.
type AllianceColor uint8

const (
	Red AllianceColor = iota
	Blue
)

// Alliance is a (color, station) pair. Station is 1..3.
type Alliance struct {
	Color   AllianceColor
	Station uint8
}

// ToByte encodes an alliance as Red1=0 .. Red3=2, Blue1=3 .. Blue3=5.
func (a Alliance) ToByte() uint8 {
	base := uint8(0)
	if a.Color == Blue {
		base = 3
	}
	station := a.Station
	if station < 1 || station > 3 {
		station = 1
	}
	return base + (station - 1)
}

// AllianceFromByte decodes the wire alliance byte; values >= 6 are invalid.
func AllianceFromByte(b uint8) (Alliance, bool) {
	if b >= 6 {
		return Alliance{}, false
	}
	if b < 3 {
		return Alliance{Color: Red, Station: b + 1}, true
	}
	return Alliance{Color: Blue, Station: b - 3 + 1}, true
}

// ControlFlags is the outbound control byte: estop, FMS-connected, enabled, mode.
// Invariant: Enabled must never be true while EStop is true — callers that
// compose this struct (internal/station) are responsible for upholding it;
// EncodeByte does not itself reject the combination so that decode/encode stay
// total functions for the round-trip property tests.
type ControlFlags struct {
	EStop        bool
	FMSConnected bool
	Enabled      bool
	Mode         Mode
}

// EncodeByte packs the control flags into the single outbound control byte.
func (c ControlFlags) EncodeByte() uint8 {
	var b uint8
	if c.EStop {
		b |= 1 << 7
	}
	if c.FMSConnected {
		b |= 1 << 3
	}
	if c.Enabled {
		b |= 1 << 2
	}
	b |= c.Mode.bits()
	return b
}

// ControlFlagsFromByte decodes a control byte. Fails only when the mode bits
// form the invalid 0b11 pattern.
func ControlFlagsFromByte(b uint8) (ControlFlags, bool) {
	mode, ok := modeFromBits(b)
	if !ok {
		return ControlFlags{}, false
	}
	return ControlFlags{
		EStop:        b&(1<<7) != 0,
		FMSConnected: b&(1<<3) != 0,
		Enabled:      b&(1<<2) != 0,
		Mode:         mode,
	}, true
}

// RequestFlags carries the edge-triggered reboot/restart request bits. The
// driver station is responsible for clearing these after exactly one
// transmission (see internal/station pulse overlay).
type RequestFlags struct {
	RebootRoborio bool
	RestartCode   bool
}

// EncodeByte packs the request flags into the outbound request byte.
func (r RequestFlags) EncodeByte() uint8 {
	var b uint8
	if r.RebootRoborio {
		b |= 1 << 3
	}
	if r.RestartCode {
		b |= 1 << 2
	}
	return b
}

// StatusFlags is the inbound status byte reported by the robot.
type StatusFlags struct {
	EStop           bool
	CodeInitializing bool
	Brownout        bool
	Enabled         bool
	Mode            Mode
}

// StatusFlagsFromByte decodes an inbound status byte. Fails only on the
// invalid 0b11 mode pattern.
func StatusFlagsFromByte(b uint8) (StatusFlags, bool) {
	mode, ok := modeFromBits(b)
	if !ok {
		return StatusFlags{}, false
	}
	return StatusFlags{
		EStop:            b&(1<<7) != 0,
		CodeInitializing: b&(1<<4) != 0,
		Brownout:         b&(1<<3) != 0,
		Enabled:          b&(1<<2) != 0,
		Mode:             mode,
	}, true
}

// BatteryVoltage is the robot battery voltage in volts.
type BatteryVoltage float64

// ToBytes packs the voltage as (integer volts, fractional/256).
func (v BatteryVoltage) ToBytes() (hi, lo uint8) {
	whole := uint8(v)
	frac := uint8((float64(v) - float64(whole)) * 256)
	return whole, frac
}

// BatteryVoltageFromBytes unpacks the two-byte wire representation.
func BatteryVoltageFromBytes(hi, lo uint8) BatteryVoltage {
	return BatteryVoltage(float64(hi) + float64(lo)/256.0)
}

// JoystickData is one joystick's axis, button and POV state for a single tick.
type JoystickData struct {
	Axes    []int8
	Buttons []bool
	Povs    []int16
}

// JoystickDescriptor summarizes a joystick's shape for the TCP
// JoystickDescriptor outbound message (slot assignment, counts).
type JoystickDescriptor struct {
	Slot        uint8
	Name        string
	AxisCount   uint8
	ButtonCount uint8
	PovCount    uint8
}

// DescriptorFor derives a JoystickDescriptor for slot from a JoystickData frame.
func DescriptorFor(slot uint8, name string, js JoystickData) JoystickDescriptor {
	return JoystickDescriptor{
		Slot:        slot,
		Name:        name,
		AxisCount:   uint8(len(js.Axes)),
		ButtonCount: uint8(len(js.Buttons)),
		PovCount:    uint8(len(js.Povs)),
	}
}

// CanMetrics is the robot's CAN bus health counters.
type CanMetrics struct {
	UtilizationPercent uint8
	BusOffCount        uint32
	TxFullCount        uint32
	RxErrorCount       uint8
	TxErrorCount       uint8
}

// TelemetryData aggregates the most recent telemetry tags received from the
// robot. Latest-wins for CAN/RAM/disk; CPU and PDP vectors are replaced
// wholesale on each tag that supplies them.
type TelemetryData struct {
	CAN           CanMetrics
	PDPCurrents   [16]float64
	CPUUsage      []float64
	RAMUsageBytes uint32
	FreeDiskBytes uint32
}

// RobotState is the observable snapshot published by the driver station to
// its subscribers. It is written by exactly one goroutine (the packet
// ingester) per invariant (e) in spec.md §3.
type RobotState struct {
	Connected    bool
	CodeRunning  bool
	Voltage      BatteryVoltage
	Status       StatusFlags
	Telemetry    TelemetryData
	LastSequence uint16
	TripTimeMs   float64
	LostPackets  uint64
}
