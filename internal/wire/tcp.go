package wire

import (
	"encoding/binary"
	"math"
)

// TCP message tags (spec.md §4.3).
const (
	tcpTagMessage      = 0x00
	tcpTagVersionInfo  = 0x0a
	tcpTagErrorReport  = 0x0b
	tcpTagStdout       = 0x0c
	tcpTagGameData     = 0x0e
	tcpTagJoystickDesc = 0x02
	tcpTagMatchInfo    = 0x07
)

// MessageKind discriminates the parsed TcpMessage union.
type MessageKind int

const (
	MessageKindStdout MessageKind = iota
	MessageKindMessage
	MessageKindVersionInfo
	MessageKindErrorReport
)

// VersionInfo is the robot's device/firmware identification message.
type VersionInfo struct {
	DeviceType uint8
	DeviceID   uint8
	Name       string
	Version    string
}

// ErrorReport is a robot-reported error/event.
type ErrorReport struct {
	Timestamp float64
	Sequence  uint16
	ErrorCode int32
	IsError   bool
	Details   string
	Location  string
	CallStack string
}

// TcpMessage is one parsed frame from the TCP message stream.
type TcpMessage struct {
	Kind        MessageKind
	Text        string // Stdout or Message
	VersionInfo VersionInfo
	ErrorReport ErrorReport
}

// Reassembler accumulates raw TCP bytes and extracts length-prefixed frames.
// It copes with arbitrary chunk boundaries, including single-byte feeds.
type Reassembler struct {
	buf []byte
}

// Feed appends newly received bytes to the reassembly buffer.
func (r *Reassembler) Feed(chunk []byte) {
	r.buf = append(r.buf, chunk...)
}

// Frame is one length-prefixed TCP frame: a tag byte and its payload.
type Frame struct {
	Tag     uint8
	Payload []byte
}

// Next extracts at most one complete frame from the buffer. A leading header
// with size 0 has no room for a tag byte and is discarded first. It returns
// ok=false if fewer than 2+size bytes are currently buffered; the buffer is
// otherwise left untouched in that case. On success it drains exactly 2+size
// bytes.
func (r *Reassembler) Next() (Frame, bool) {
	for len(r.buf) >= 2 && binary.BigEndian.Uint16(r.buf[0:2]) == 0 {
		r.buf = r.buf[2:]
	}
	if len(r.buf) < 2 {
		return Frame{}, false
	}
	size := binary.BigEndian.Uint16(r.buf[0:2])
	total := 2 + int(size)
	if len(r.buf) < total {
		return Frame{}, false
	}
	tag := r.buf[2]
	payload := make([]byte, int(size)-1)
	copy(payload, r.buf[3:total])
	r.buf = r.buf[total:]
	return Frame{Tag: tag, Payload: payload}, true
}

// EncodeFrame builds a length-prefixed TCP frame for tag/payload.
func EncodeFrame(tag uint8, payload []byte) []byte {
	size := uint16(1 + len(payload))
	buf := make([]byte, 0, 2+int(size))
	buf = binary.BigEndian.AppendUint16(buf, size)
	buf = append(buf, tag)
	buf = append(buf, payload...)
	return buf
}

// DecodeMessage interprets a frame's tag/payload as a typed TcpMessage.
// Unknown tags are discarded (ok=false).
func DecodeMessage(f Frame) (TcpMessage, bool) {
	switch f.Tag {
	case tcpTagMessage:
		return TcpMessage{Kind: MessageKindMessage, Text: string(f.Payload)}, true
	case tcpTagStdout:
		return TcpMessage{Kind: MessageKindStdout, Text: string(f.Payload)}, true
	case tcpTagVersionInfo:
		return decodeVersionInfo(f.Payload)
	case tcpTagErrorReport:
		return decodeErrorReport(f.Payload)
	default:
		return TcpMessage{}, false
	}
}

func decodeVersionInfo(p []byte) (TcpMessage, bool) {
	if len(p) < 3 {
		return TcpMessage{}, false
	}
	devType, devID := p[0], p[1]
	nameLen := int(p[2])
	off := 3
	if len(p) < off+nameLen+1 {
		return TcpMessage{}, false
	}
	name := string(p[off : off+nameLen])
	off += nameLen
	verLen := int(p[off])
	off++
	if len(p) < off+verLen {
		return TcpMessage{}, false
	}
	version := string(p[off : off+verLen])
	return TcpMessage{
		Kind: MessageKindVersionInfo,
		VersionInfo: VersionInfo{
			DeviceType: devType,
			DeviceID:   devID,
			Name:       name,
			Version:    version,
		},
	}, true
}

func decodeErrorReport(p []byte) (TcpMessage, bool) {
	if len(p) < 8+2+4+2+2 {
		return TcpMessage{}, false
	}
	ts := math.Float64frombits(binary.BigEndian.Uint64(p[0:8]))
	seq := binary.BigEndian.Uint16(p[8:10])
	code := int32(binary.BigEndian.Uint32(p[10:14]))
	flags := binary.BigEndian.Uint16(p[14:16])
	off := 16
	details, off, ok := readLenPrefixed16(p, off)
	if !ok {
		return TcpMessage{}, false
	}
	location, off, ok := readLenPrefixed16(p, off)
	if !ok {
		return TcpMessage{}, false
	}
	callStack, _, ok := readLenPrefixed16(p, off)
	if !ok {
		return TcpMessage{}, false
	}
	return TcpMessage{
		Kind: MessageKindErrorReport,
		ErrorReport: ErrorReport{
			Timestamp: ts,
			Sequence:  seq,
			ErrorCode: code,
			IsError:   flags&1 != 0,
			Details:   details,
			Location:  location,
			CallStack: callStack,
		},
	}, true
}

func readLenPrefixed16(p []byte, off int) (string, int, bool) {
	if len(p) < off+2 {
		return "", off, false
	}
	n := int(binary.BigEndian.Uint16(p[off : off+2]))
	off += 2
	if len(p) < off+n {
		return "", off, false
	}
	return string(p[off : off+n]), off + n, true
}

// EncodeGameData builds the outbound GameData TCP message (tag 0x0e).
func EncodeGameData(data string) []byte {
	return EncodeFrame(tcpTagGameData, []byte(data))
}

// EncodeJoystickDescriptor builds the outbound JoystickDescriptor TCP
// message (tag 0x02) for a single joystick slot.
func EncodeJoystickDescriptor(d JoystickDescriptor) []byte {
	payload := []byte{d.Slot, 0, 0, uint8(len(d.Name))}
	payload = append(payload, []byte(d.Name)...)
	payload = append(payload, d.AxisCount, d.ButtonCount, d.PovCount)
	return EncodeFrame(tcpTagJoystickDesc, payload)
}

// EncodeMatchInfo builds the outbound MatchInfo TCP message (tag 0x07).
func EncodeMatchInfo(name string, matchType uint8) []byte {
	payload := []byte{uint8(len(name))}
	payload = append(payload, []byte(name)...)
	payload = append(payload, matchType)
	return EncodeFrame(tcpTagMatchInfo, payload)
}
