package client

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/gridcore/client/internal/proto"
	"github.com/gridcore/client/internal/wire"
)

// dropConnectionType is a sentinel a test handler can return to make
// serveFakeMember close the connection instead of replying, simulating a
// dead peer for communication-failure test cases.
const dropConnectionType uint16 = 0xFFFE

// fakeMember listens on a real loopback TCP socket and answers the
// protocol-magic handshake plus any number of framed request/response
// pairs via a caller-supplied handler, mirroring internal/channel's
// net.Pipe fakePeer but over a real listener since connectMember always
// dials "tcp".
type fakeMember struct {
	ln net.Listener
}

func startFakeMember(t *testing.T, handle func(proto.Message) proto.Message) (Address, *fakeMember) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fm := &fakeMember{ln: ln}
	go fm.acceptLoop(handle)
	t.Cleanup(func() { ln.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host/port: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return Address{Host: host, Port: uint32(port)}, fm
}

func (fm *fakeMember) acceptLoop(handle func(proto.Message) proto.Message) {
	for {
		conn, err := fm.ln.Accept()
		if err != nil {
			return
		}
		go serveFakeMember(conn, handle)
	}
}

func serveFakeMember(conn net.Conn, handle func(proto.Message) proto.Message) {
	defer conn.Close()

	magic := make([]byte, 3)
	if _, err := io.ReadFull(conn, magic); err != nil {
		return
	}

	r := bufio.NewReader(conn)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return
		}
		total := proto.FrameLength(lenBuf)
		frame := make([]byte, total)
		copy(frame, lenBuf[:])
		if _, err := io.ReadFull(r, frame[4:]); err != nil {
			return
		}
		msg, cid, err := proto.DecodeFrame(frame)
		if err != nil {
			return
		}
		reply := handle(msg)
		if reply.Type == dropConnectionType {
			return // simulates a dead peer: no reply, connection closes
		}
		out := proto.EncodeFrame(reply, cid)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

// encodeAuthResponse builds the raw payload of an AuthenticationResponse
// (0x6B), mirroring proto.DecodeAuthenticationResponse in reverse. It
// deliberately skips the trailing optional<sequence<ClusterMember>>
// field, the same way the real decoder never reads it.
func encodeAuthResponse(status proto.AuthenticationStatus, addr *proto.Address, id, ownerID *string) []byte {
	w := wire.NewWriter(32)
	w.WriteUint8(uint8(status))
	if addr == nil {
		w.WriteAbsent()
	} else {
		w.WritePresent()
		w.WriteString(addr.Host)
		w.WriteUint32(addr.Port)
	}
	writeOptionalString(w, id)
	writeOptionalString(w, ownerID)
	w.WriteUint8(1) // serialization_version
	return w.Bytes()
}

func writeOptionalString(w *wire.Writer, s *string) {
	if s == nil {
		w.WriteAbsent()
		return
	}
	w.WritePresent()
	w.WriteString(*s)
}

// encodeExceptionResponse builds the raw payload of an ExceptionResponse
// (0x6D) with no stack trace and no cause, mirroring
// proto.DecodeExceptionResponse in reverse.
func encodeExceptionResponse(code int32, className string, message *string) []byte {
	w := wire.NewWriter(32)
	w.WriteInt32(code)
	w.WriteString(className)
	writeOptionalString(w, message)
	w.WriteSequenceLen(0) // stack trace
	w.WriteUint32(0)      // cause_error_code
	w.WriteAbsent()       // cause_class_name
	return w.Bytes()
}

func strPtr(s string) *string { return &s }

// authOKResponse returns a ready-to-send AuthenticationResponse message
// reporting success and the given server-assigned id, for fake members
// whose test only cares about what happens after the handshake.
func authOKResponse(id string) proto.Message {
	return proto.Message{
		Type:        proto.TypeAuthenticationResponse,
		PartitionID: proto.NoPartition,
		Payload:     encodeAuthResponse(proto.StatusAuthenticated, nil, strPtr(id), nil),
	}
}
