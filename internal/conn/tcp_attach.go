package conn

import (
	"context"
	"net"
	"sync"
	"time"

	"driverstation/internal/wire"
)

// tcpRetryDelay is the pause between TCP (re)connect attempts. The TCP leg
// is advisory (spec.md §9): losing it must never affect the UDP cadence, so
// failures here only ever retry, never propagate.
const tcpRetryDelay = 1 * time.Second

const tcpPollInterval = 250 * time.Millisecond

// tcpAttachment owns the advisory TCP connection to the robot: connect with
// a 3-second timeout, reassemble frames, decode messages, retry on failure.
type tcpAttachment struct {
	target string
}

func (t *tcpAttachment) run(ctx context.Context, out chan<- wire.TcpMessage, outbound <-chan []byte) {
	for ctx.Err() == nil {
		c, err := net.DialTimeout("tcp", t.target, tcpDialTimeout)
		if err != nil {
			if !sleepOrDone(ctx, tcpRetryDelay) {
				return
			}
			continue
		}

		connCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.writeLoop(connCtx, c, outbound)
		}()

		t.readLoop(connCtx, c, out)
		cancel()
		wg.Wait()
		c.Close()

		if !sleepOrDone(ctx, tcpRetryDelay) {
			return
		}
	}
}

// writeLoop drains outbound frames queued by the driver station (game data,
// joystick descriptors, match info) for as long as the connection is up.
// Best-effort: a failed write just lets the connection drop and retry.
func (t *tcpAttachment) writeLoop(ctx context.Context, c net.Conn, outbound <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-outbound:
			c.SetWriteDeadline(time.Now().Add(tcpDialTimeout))
			if _, err := c.Write(data); err != nil {
				return
			}
		}
	}
}

func (t *tcpAttachment) readLoop(ctx context.Context, c net.Conn, out chan<- wire.TcpMessage) {
	var reasm wire.Reassembler
	buf := make([]byte, tcpReadBufSize)

	for ctx.Err() == nil {
		c.SetReadDeadline(time.Now().Add(tcpPollInterval))
		n, err := c.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // just a poll interval tick, not a real failure
			}
			return // connection reset or closed: fall back to reconnect
		}

		reasm.Feed(buf[:n])
		for {
			f, ok := reasm.Next()
			if !ok {
				break
			}
			msg, ok := wire.DecodeMessage(f)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			default:
				<-out
				out <- msg
			}
		}
	}
}

// sleepOrDone waits for d or ctx cancellation, reporting whether it slept
// the full duration (false means the caller should stop).
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
