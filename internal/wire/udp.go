package wire

import "encoding/binary"

// Wire protocol version carried in both outbound and inbound UDP packets.
const ProtocolVersion = 0x01

// UDP tag IDs: the inbound telemetry tags, then the outbound joystick,
// datetime and timezone tags.
const (
	tagJoystickOutput = 0x01
	tagDiskUsage      = 0x04
	tagCPUUsage       = 0x05
	tagRAMUsage       = 0x06
	tagPDPData        = 0x08
	tagCANMetrics     = 0x0e
	tagJoystick       = 0x0c
	tagDatetime       = 0x0f
	tagTimezone       = 0x10
)

// maxJoystickTags is the number of joystick slots encoded per outbound
// packet; excess joysticks are dropped silently per spec §4.2.
const maxJoystickTags = 6

// TagKind discriminates the parsed inbound tag union.
type TagKind int

const (
	TagKindJoystickOutput TagKind = iota
	TagKindDiskFree
	TagKindCPUUsage
	TagKindRAMUsage
	TagKindPDPData
	TagKindCANMetrics
	TagKindUnknown
)

// JoystickOutputTag is the robot's echoed joystick-output / rumble state.
type JoystickOutputTag struct {
	Outputs     uint32
	LeftRumble  uint16
	RightRumble uint16
}

// Tag is one parsed sub-record from an inbound UDP packet. Only the field
// matching Kind is meaningful.
type Tag struct {
	Kind TagKind

	JoystickOutput JoystickOutputTag
	DiskFreeBytes  uint32
	CPUUsage       []float64
	RAMUsageBytes  uint32
	PDPCurrents    [16]float64
	CAN            CanMetrics

	UnknownID      uint8
	UnknownPayload []byte
}

// OutboundPacket is the control/telemetry packet sent to the robot every
// cadence tick.
type OutboundPacket struct {
	Sequence  uint16
	Control   ControlFlags
	Request   RequestFlags
	Alliance  Alliance
	Joysticks []JoystickData
}

// EncodeControlPacket serializes an outbound packet: header followed by at
// most maxJoystickTags joystick tags in slot order.
func EncodeControlPacket(p OutboundPacket) []byte {
	buf := make([]byte, 0, 8+64)
	buf = binary.BigEndian.AppendUint16(buf, p.Sequence)
	buf = append(buf, ProtocolVersion, p.Control.EncodeByte(), p.Request.EncodeByte(), p.Alliance.ToByte())

	n := len(p.Joysticks)
	if n > maxJoystickTags {
		n = maxJoystickTags
	}
	for i := 0; i < n; i++ {
		buf = appendJoystickTag(buf, p.Joysticks[i])
	}
	return buf
}

func appendJoystickTag(buf []byte, js JoystickData) []byte {
	payload := make([]byte, 0, 1+len(js.Axes)+1+((len(js.Buttons)+7)/8)+1+2*len(js.Povs))
	payload = append(payload, uint8(len(js.Axes)))
	for _, a := range js.Axes {
		payload = append(payload, uint8(a))
	}
	payload = append(payload, uint8(len(js.Buttons)))
	buttonBytes := (len(js.Buttons) + 7) / 8
	packed := make([]byte, buttonBytes)
	for i, pressed := range js.Buttons {
		if pressed {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	payload = append(payload, packed...)
	payload = append(payload, uint8(len(js.Povs)))
	for _, pov := range js.Povs {
		payload = binary.BigEndian.AppendUint16(payload, uint16(pov))
	}

	size := uint8(1 + len(payload)) // tag_id + payload, not counting the size byte
	buf = append(buf, size, tagJoystick)
	buf = append(buf, payload...)
	return buf
}

// EncodeDatetimeTag builds the 0x0f datetime tag payload described in
// spec.md §4.2.
func EncodeDatetimeTag(micros uint32, sec, min, hr, day, month, yearSince1900 uint8) []byte {
	payload := binary.BigEndian.AppendUint32(nil, micros)
	payload = append(payload, sec, min, hr, day, month, yearSince1900)
	size := uint8(1 + len(payload))
	return append([]byte{size, tagDatetime}, payload...)
}

// EncodeTimezoneTag builds the 0x10 timezone tag from a raw string.
func EncodeTimezoneTag(tz string) []byte {
	payload := []byte(tz)
	size := uint8(1 + len(payload))
	return append([]byte{size, tagTimezone}, payload...)
}

// RioPacket is a fully parsed inbound UDP packet.
type RioPacket struct {
	Sequence    uint16
	Status      StatusFlags
	Trace       uint8
	Voltage     BatteryVoltage
	RequestDate bool
	Tags        []Tag
}

// DecodeRioPacket parses an inbound UDP datagram. It rejects packets shorter
// than 8 bytes and packets whose version byte is not ProtocolVersion. A
// truncated trailing tag terminates parsing silently, preserving the tags
// already parsed.
func DecodeRioPacket(data []byte) (RioPacket, bool) {
	if len(data) < 8 {
		return RioPacket{}, false
	}
	if data[2] != ProtocolVersion {
		return RioPacket{}, false
	}
	status, ok := StatusFlagsFromByte(data[3])
	if !ok {
		return RioPacket{}, false
	}

	pkt := RioPacket{
		Sequence:    binary.BigEndian.Uint16(data[0:2]),
		Status:      status,
		Trace:       data[4],
		Voltage:     BatteryVoltageFromBytes(data[5], data[6]),
		RequestDate: data[7] != 0,
	}

	rest := data[8:]
	for len(rest) >= 1 {
		size := int(rest[0])
		if size < 1 || len(rest) < 1+size {
			break // truncated trailing tag: stop, keep what we have
		}
		tagID := rest[1]
		payload := rest[2 : 1+size]
		if tag, ok := decodeTag(tagID, payload); ok {
			pkt.Tags = append(pkt.Tags, tag)
		}
		rest = rest[1+size:]
	}
	return pkt, true
}

func decodeTag(id uint8, payload []byte) (Tag, bool) {
	switch id {
	case tagJoystickOutput:
		if len(payload) < 8 {
			return Tag{}, false
		}
		return Tag{
			Kind: TagKindJoystickOutput,
			JoystickOutput: JoystickOutputTag{
				Outputs:     binary.BigEndian.Uint32(payload[0:4]),
				LeftRumble:  binary.BigEndian.Uint16(payload[4:6]),
				RightRumble: binary.BigEndian.Uint16(payload[6:8]),
			},
		}, true
	case tagDiskUsage:
		if len(payload) < 4 {
			return Tag{}, false
		}
		return Tag{Kind: TagKindDiskFree, DiskFreeBytes: binary.BigEndian.Uint32(payload[0:4])}, true
	case tagCPUUsage:
		if len(payload) < 1 {
			return Tag{}, false
		}
		count := int(payload[0])
		if len(payload) < 1+2*count {
			return Tag{}, false
		}
		usage := make([]float64, count)
		for i := 0; i < count; i++ {
			hi := payload[1+2*i]
			lo := payload[1+2*i+1]
			usage[i] = float64(hi) + float64(lo)/256.0
		}
		return Tag{Kind: TagKindCPUUsage, CPUUsage: usage}, true
	case tagRAMUsage:
		if len(payload) < 4 {
			return Tag{}, false
		}
		return Tag{Kind: TagKindRAMUsage, RAMUsageBytes: binary.BigEndian.Uint32(payload[0:4])}, true
	case tagPDPData:
		if len(payload) < 21 {
			return Tag{}, false
		}
		var channels [16]float64
		for g := 0; g < 4; g++ {
			b := payload[g*5 : g*5+5]
			raw0 := uint16(b[0])<<2 | uint16(b[1])>>6
			raw1 := (uint16(b[1])&0x3F)<<4 | uint16(b[2])>>4
			raw2 := (uint16(b[2])&0x0F)<<6 | uint16(b[3])>>2
			raw3 := (uint16(b[3])&0x03)<<8 | uint16(b[4])
			channels[g*4+0] = float64(raw0) * 0.125
			channels[g*4+1] = float64(raw1) * 0.125
			channels[g*4+2] = float64(raw2) * 0.125
			channels[g*4+3] = float64(raw3) * 0.125
		}
		return Tag{Kind: TagKindPDPData, PDPCurrents: channels}, true
	case tagCANMetrics:
		if len(payload) < 7 {
			return Tag{}, false
		}
		return Tag{Kind: TagKindCANMetrics, CAN: CanMetrics{
			UtilizationPercent: payload[0],
			BusOffCount:        uint32(binary.BigEndian.Uint16(payload[1:3])),
			TxFullCount:        uint32(binary.BigEndian.Uint16(payload[3:5])),
			RxErrorCount:       payload[5],
			TxErrorCount:       payload[6],
		}}, true
	default:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return Tag{Kind: TagKindUnknown, UnknownID: id, UnknownPayload: cp}, true
	}
}
