package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"driverstation/internal/wire"
)

func TestTcpAttachmentReadsFramedMessages(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	att := &tcpAttachment{target: ln.Addr().String()}
	out := make(chan wire.TcpMessage, 4)
	outbound := make(chan []byte, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go att.run(ctx, out, outbound)

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("attachment never connected")
	}
	defer server.Close()

	frame := wire.EncodeFrame(0x00, []byte("hello"))
	if _, err := server.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-out:
		if msg.Text != "hello" {
			t.Fatalf("got message text %q, want %q", msg.Text, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for decoded message")
	}
}

func TestTcpAttachmentWritesOutboundFrames(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	att := &tcpAttachment{target: ln.Addr().String()}
	out := make(chan wire.TcpMessage, 4)
	outbound := make(chan []byte, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go att.run(ctx, out, outbound)

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("attachment never connected")
	}
	defer server.Close()

	outbound <- wire.EncodeGameData("abc")

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var reasm wire.Reassembler
	reasm.Feed(buf[:n])
	frame, ok := reasm.Next()
	if !ok {
		t.Fatalf("expected a complete frame, got %d raw bytes", n)
	}
	if string(frame.Payload) != "abc" {
		t.Fatalf("frame payload = %q, want %q", frame.Payload, "abc")
	}
}
