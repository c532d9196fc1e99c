package client

import (
	"errors"
	"fmt"

	"github.com/gridcore/client/internal/proto"
)

// Kind identifies one of the handful of ways a cluster operation can fail.
type Kind int

const (
	// KindAuthenticationFailure means an authentication response carried a
	// non-zero status.
	KindAuthenticationFailure Kind = iota
	// KindClusterNonOperational means a generic dispatch found no enabled
	// member.
	KindClusterNonOperational
	// KindNodeNonOperational means a forward to a specific address found
	// no enabled member there.
	KindNodeNonOperational
	// KindCommunicationFailure means a socket, framing, or write error, or
	// a dropped channel.
	KindCommunicationFailure
	// KindServerFailure means the response message type was the exception
	// type (0x6D).
	KindServerFailure
	// KindProtocolViolation means an unexpected message type, a truncated
	// frame, bad UTF-8, data_offset < 22, or a length overflow.
	KindProtocolViolation
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationFailure:
		return "authentication-failure"
	case KindClusterNonOperational:
		return "cluster-non-operational"
	case KindNodeNonOperational:
		return "node-non-operational"
	case KindCommunicationFailure:
		return "communication-failure"
	case KindServerFailure:
		return "server-failure"
	case KindProtocolViolation:
		return "protocol-violation"
	default:
		return "unknown"
	}
}

// Error is the single error type this module returns; every failure
// surfaced to a caller carries a Kind and, where relevant, a cause chain
// reachable through errors.Unwrap/errors.Is/errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, client.ErrClusterNonOperational) style checks
// against the sentinel values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinel values usable with errors.Is to test an error's Kind without
// caring about its message or cause.
var (
	ErrClusterNonOperational = &Error{Kind: KindClusterNonOperational}
	ErrNodeNonOperational    = &Error{Kind: KindNodeNonOperational}
)

func authenticationFailure(status AuthStatus) *Error {
	return &Error{Kind: KindAuthenticationFailure, Message: status.String()}
}

func clusterNonOperational() *Error {
	return &Error{Kind: KindClusterNonOperational, Message: "no enabled member"}
}

func nodeNonOperational(addr Address) *Error {
	return &Error{Kind: KindNodeNonOperational, Message: fmt.Sprintf("member %s not enabled", addr)}
}

func communicationFailure(cause error) *Error {
	return &Error{Kind: KindCommunicationFailure, Message: "communication failure", Cause: cause}
}

func protocolViolation(message string, cause error) *Error {
	return &Error{Kind: KindProtocolViolation, Message: message, Cause: cause}
}

// ServerError is the cause attached to a KindServerFailure Error; it
// carries the full decoded exception, including the server-side stack
// trace, so a caller can print or inspect it rather than just the
// top-level code/class/message.
type ServerError struct {
	Code           int32
	ClassName      string
	Message        string
	StackTrace     []proto.StackTraceEntry
	CauseErrorCode uint32
	CauseClassName string
}

func (s *ServerError) Error() string {
	if s.Message != "" {
		return fmt.Sprintf("server exception %s (code %d): %s", s.ClassName, s.Code, s.Message)
	}
	return fmt.Sprintf("server exception %s (code %d)", s.ClassName, s.Code)
}

func serverFailure(se *ServerError) *Error {
	return &Error{Kind: KindServerFailure, Message: se.ClassName, Cause: se}
}
