package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	encoded := EncodeFrame(0x0c, []byte("test"))
	var r Reassembler
	r.Feed(encoded)
	f, ok := r.Next()
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.Tag != 0x0c || string(f.Payload) != "test" {
		t.Errorf("frame = %+v, want tag=0x0c payload=test", f)
	}
}

func TestFrameByteAtATime(t *testing.T) {
	encoded := EncodeFrame(0x0c, []byte("test"))
	var r Reassembler
	for i, b := range encoded {
		r.Feed([]byte{b})
		f, ok := r.Next()
		if i < len(encoded)-1 {
			if ok {
				t.Fatalf("frame completed early at byte %d", i)
			}
			continue
		}
		if !ok {
			t.Fatal("expected frame to complete on final byte")
		}
		if f.Tag != 0x0c || string(f.Payload) != "test" {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestReassemblerHandlesArbitraryChunking(t *testing.T) {
	var all []byte
	all = append(all, EncodeFrame(0x00, []byte("hello"))...)
	all = append(all, EncodeFrame(0x0c, []byte("world"))...)

	var r Reassembler
	var got []Frame
	for len(all) > 0 {
		n := 3
		if n > len(all) {
			n = len(all)
		}
		r.Feed(all[:n])
		all = all[n:]
		for {
			f, ok := r.Next()
			if !ok {
				break
			}
			got = append(got, f)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if string(got[0].Payload) != "hello" || string(got[1].Payload) != "world" {
		t.Errorf("unexpected frames: %+v", got)
	}
}

func TestDecodeVersionInfo(t *testing.T) {
	payload := []byte{0x01, 0x02, 5}
	payload = append(payload, []byte("roboRIO")[:5]...)
	payload = append(payload, 3)
	payload = append(payload, []byte("1.0")...)
	msg, ok := DecodeMessage(Frame{Tag: 0x0a, Payload: payload})
	if !ok {
		t.Fatal("decode failed")
	}
	if msg.Kind != MessageKindVersionInfo {
		t.Fatalf("kind = %v", msg.Kind)
	}
	if msg.VersionInfo.DeviceType != 1 || msg.VersionInfo.DeviceID != 2 {
		t.Errorf("device type/id = %d/%d", msg.VersionInfo.DeviceType, msg.VersionInfo.DeviceID)
	}
	if msg.VersionInfo.Name != "roboR" || msg.VersionInfo.Version != "1.0" {
		t.Errorf("name/version = %q/%q", msg.VersionInfo.Name, msg.VersionInfo.Version)
	}
}

func TestDecodeErrorReportIsErrorFlag(t *testing.T) {
	var p []byte
	p = binAppendFloat64(p, 123.5)
	p = binAppendU16(p, 7)
	p = binAppendI32(p, -1)
	p = binAppendU16(p, 1) // flags: is_error = true
	p = binAppendStr16(p, "oops")
	p = binAppendStr16(p, "main.go:10")
	p = binAppendStr16(p, "stack")

	msg, ok := DecodeMessage(Frame{Tag: 0x0b, Payload: p})
	if !ok {
		t.Fatal("decode failed")
	}
	if !msg.ErrorReport.IsError {
		t.Error("expected is_error = true")
	}
	if msg.ErrorReport.Details != "oops" || msg.ErrorReport.Location != "main.go:10" || msg.ErrorReport.CallStack != "stack" {
		t.Errorf("unexpected report: %+v", msg.ErrorReport)
	}
	if msg.ErrorReport.Sequence != 7 || msg.ErrorReport.ErrorCode != -1 {
		t.Errorf("seq/code = %d/%d", msg.ErrorReport.Sequence, msg.ErrorReport.ErrorCode)
	}
}

func TestUnknownTcpTagDiscarded(t *testing.T) {
	if _, ok := DecodeMessage(Frame{Tag: 0xFF, Payload: []byte("x")}); ok {
		t.Error("unknown tag should be discarded")
	}
}

func TestEncodeJoystickDescriptorFrame(t *testing.T) {
	d := JoystickDescriptor{Slot: 2, Name: "Logitech", AxisCount: 6, ButtonCount: 12, PovCount: 1}
	frame := EncodeJoystickDescriptor(d)
	var r Reassembler
	r.Feed(frame)
	f, ok := r.Next()
	if !ok {
		t.Fatal("expected frame")
	}
	if f.Tag != 0x02 {
		t.Fatalf("tag = %#x", f.Tag)
	}
	want := []byte{2, 0, 0, 8}
	want = append(want, []byte("Logitech")...)
	want = append(want, 6, 12, 1)
	if !bytes.Equal(f.Payload, want) {
		t.Errorf("payload = % X, want % X", f.Payload, want)
	}
}
