// Package channel implements one TCP connection to a cluster member:
// length-delimited framing, a send queue, a correlation table, and
// response dispatch.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gridcore/client/internal/proto"
	"github.com/gridcore/client/internal/slogutil"
)

// ProtocolMagic is the 3-byte handshake preamble written once, before any
// length-delimited traffic, and not itself length-framed.
var ProtocolMagic = [3]byte{0x43, 0x42, 0x32}

// maxFrameLength bounds a single incoming frame so a misbehaving or
// desynced peer cannot make the channel allocate unbounded memory; it is
// set generously above any payload this protocol actually carries.
const maxFrameLength = 16 << 20

// outboundQueueDepth is the channel's many-producer/single-consumer send
// queue capacity.
const outboundQueueDepth = 256

// ErrClosed is returned by Send once the channel has been closed with
// Close, and delivered to every caller whose request was still pending at
// that point. A channel that terminates on an I/O or decode error reports
// that error to Send callers instead.
var ErrClosed = errors.New("channel: closed")

type pendingSend struct {
	msg   proto.Message
	reply chan result
}

type result struct {
	msg proto.Message
	err error
}

// Channel owns one TCP connection to one cluster member and offers Send
// from any number of concurrent callers.
type Channel struct {
	conn     net.Conn
	log      *slog.Logger
	outCh    chan pendingSend
	done     chan struct{}
	closed   atomic.Bool
	closeErr atomic.Value // error

	closeOnce sync.Once
}

// Dial opens a TCP connection to addr, performs the protocol magic
// handshake, and starts the background decode/dispatch loop. The
// returned Channel is usable immediately; Close tears it down.
func Dial(ctx context.Context, network, addr string) (*Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("channel: dial %s: %w", addr, err)
	}

	if _, err := conn.Write(ProtocolMagic[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("channel: write protocol magic: %w", err)
	}

	return newChannel(conn), nil
}

// newChannel wraps an already-handshaken connection and starts the
// background loop. Split out from Dial so tests can drive the channel
// over an in-memory net.Pipe without a real socket or magic handshake.
func newChannel(conn net.Conn) *Channel {
	c := &Channel{
		conn:  conn,
		log:   slogutil.For("channel"),
		outCh: make(chan pendingSend, outboundQueueDepth),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Send enqueues msg, assigns it a fresh correlation id inside the
// background loop, and blocks until a reply arrives, ctx is done, or the
// channel closes.
func (c *Channel) Send(ctx context.Context, msg proto.Message) (proto.Message, error) {
	reply := make(chan result, 1)
	select {
	case c.outCh <- pendingSend{msg: msg, reply: reply}:
	case <-c.done:
		return proto.Message{}, c.closedError()
	case <-ctx.Done():
		return proto.Message{}, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.msg, r.err
	case <-ctx.Done():
		// Dropping interest in the reply is safe: reply is buffered 1, so
		// the background loop's eventual send into it never blocks even
		// though nothing reads it again after this point.
		return proto.Message{}, ctx.Err()
	case <-c.done:
		return proto.Message{}, c.closedError()
	}
}

// Close terminates the channel: pending sends fail, the connection is
// closed, and the background loop exits.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// Closed reports whether the channel has terminated.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

func (c *Channel) closedError() error {
	if v := c.closeErr.Load(); v != nil {
		return v.(error)
	}
	return ErrClosed
}

// run is the channel's single background task: it owns the correlation
// table with no external locking, since it is the only goroutine that
// ever touches it, and drives both the outbound queue and the inbound
// framed reader.
func (c *Channel) run() {
	defer c.conn.Close()

	// Buffered so readLoop can keep handing off replies while run is blocked
	// writing a frame to a peer that is itself waiting for its own reply to
	// be read.
	inboundCh := make(chan inboundEvent, outboundQueueDepth)
	go c.readLoop(inboundCh)

	table := make(map[uint64]chan result)
	var nextID uint64

	terminate := func(err error) {
		if err != ErrClosed {
			c.log.Error("channel terminated", slogutil.Error(err))
		}
		c.closeErr.Store(err)
		c.closed.Store(true)
		for id, reply := range table {
			reply <- result{err: err}
			delete(table, id)
		}
		// Closing done lets any Send that enqueues after this point, or is
		// still waiting, observe the termination instead of blocking.
		c.Close()
	}

	for {
		select {
		case <-c.done:
			terminate(ErrClosed)
			// Drain anything still sitting in the outbound queue: it was
			// accepted by Send before Close ran, but never reached the
			// correlation table, so terminate above wouldn't have failed
			// it.
			for {
				select {
				case ps := <-c.outCh:
					ps.reply <- result{err: ErrClosed}
				default:
					return
				}
			}

		case ps := <-c.outCh:
			id := nextID
			nextID++
			table[id] = ps.reply
			frame := proto.EncodeFrame(ps.msg, id)
			if _, err := c.conn.Write(frame); err != nil {
				delete(table, id)
				ps.reply <- result{err: fmt.Errorf("channel: write: %w", err)}
				terminate(fmt.Errorf("channel: write: %w", err))
				return
			}

		case ev := <-inboundCh:
			if ev.err != nil {
				terminate(ev.err)
				return
			}
			reply, ok := table[ev.correlationID]
			if !ok {
				// Can only happen on a misbehaving peer: drop the message
				// and log it rather than panicking the background loop.
				c.log.Error("response for unknown correlation id", "correlation_id", ev.correlationID)
				continue
			}
			delete(table, ev.correlationID)
			reply <- result{msg: ev.msg}
		}
	}
}

type inboundEvent struct {
	msg           proto.Message
	correlationID uint64
	err           error
}

// readLoop reads length-delimited frames from the connection and decodes
// them, forwarding each as an inboundEvent. The length field it reads is
// the frame's own 4-byte length prefix, which reports the total frame
// length including itself.
func (c *Channel) readLoop(out chan<- inboundEvent) {
	r := bufio.NewReader(c.conn)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			out <- inboundEvent{err: fmt.Errorf("channel: read frame length: %w", err)}
			return
		}
		total := proto.FrameLength(lenBuf)
		if total < 4 || total > maxFrameLength {
			out <- inboundEvent{err: fmt.Errorf("channel: implausible frame length %d", total)}
			return
		}

		frame := make([]byte, total)
		copy(frame, lenBuf[:])
		if _, err := io.ReadFull(r, frame[4:]); err != nil {
			out <- inboundEvent{err: fmt.Errorf("channel: read frame body: %w", err)}
			return
		}

		msg, cid, err := proto.DecodeFrame(frame)
		if err != nil {
			out <- inboundEvent{err: fmt.Errorf("channel: decode frame: %w", err)}
			return
		}
		out <- inboundEvent{msg: msg, correlationID: cid}
	}
}
