package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gridcore/client/internal/channel"
	"github.com/gridcore/client/internal/metrics"
	"github.com/gridcore/client/internal/proto"
)

// ClientType is the wire-visible client family name the server reports
// back to operators; it must stay stable per client family.
const ClientType = "Go"

// ClientVersion is the compiled-in client version sent on every
// authentication handshake.
const ClientVersion = "1.0.0"

const serializationVersion uint8 = 1

// Member is one authenticated logical cluster participant: it owns a
// Channel and carries the identity the server assigned it on connect.
type Member struct {
	id      string
	ownerID string
	address Address
	ch      *channel.Channel
	metrics *metrics.Collectors

	// Member keeps no correlation-id counter of its own: ids are assigned
	// inside its Channel's single-writer background loop, so each member's
	// ids come from the one Channel it holds.
}

// Credentials is the username/password pair presented on connect.
type Credentials struct {
	Username string
	Password string
}

// connectMember dials addr, performs the authentication handshake, and
// returns an authenticated Member. m is nil-safe; pass nil to disable
// per-request metrics for this member.
func connectMember(ctx context.Context, addr Address, creds Credentials, m *metrics.Collectors) (*Member, error) {
	ch, err := channel.Dial(ctx, "tcp", addr.String())
	if err != nil {
		return nil, communicationFailure(err)
	}

	req := proto.AuthenticationRequest{
		Username:             creds.Username,
		Password:             creds.Password,
		ClientType:           ClientType,
		SerializationVersion: serializationVersion,
		ClientVersion:        ClientVersion,
	}
	reqMsg := proto.Message{
		Type:        proto.TypeAuthenticationRequest,
		PartitionID: proto.NoPartition,
		Payload:     req.Encode(),
	}

	respMsg, err := ch.Send(ctx, reqMsg)
	if err != nil {
		ch.Close()
		return nil, communicationFailure(err)
	}

	switch respMsg.Type {
	case proto.TypeAuthenticationResponse:
		resp, err := proto.DecodeAuthenticationResponse(respMsg.Payload)
		if err != nil {
			ch.Close()
			return nil, protocolViolation("decode authentication response", err)
		}
		if resp.Status != proto.StatusAuthenticated {
			ch.Close()
			return nil, authenticationFailure(resp.Status)
		}

		member := &Member{ch: ch, address: addr, metrics: m}
		if resp.Address != nil {
			// The cluster may report its own view of the address, which can
			// differ from the endpoint dialed; this client treats the
			// server-reported value as the member's identity going forward.
			member.address = addressFromProto(*resp.Address)
		}
		if resp.ID != nil {
			member.id = *resp.ID
		}
		if resp.OwnerID != nil {
			member.ownerID = *resp.OwnerID
		}
		return member, nil

	case proto.TypeExceptionResponse:
		ch.Close()
		exc, decErr := proto.DecodeExceptionResponse(respMsg.Payload)
		if decErr != nil {
			return nil, protocolViolation("decode exception response", decErr)
		}
		return nil, serverFailure(exceptionToServerError(exc))

	default:
		ch.Close()
		return nil, protocolViolation(fmt.Sprintf("unexpected message type %#x during authentication", respMsg.Type), nil)
	}
}

// Address returns the member's server-reported address.
func (m *Member) Address() Address { return m.address }

// ID returns the server-assigned member id.
func (m *Member) ID() string { return m.id }

// send wraps payload in a message of type reqType, hands it to the
// member's channel, and returns the reply. An exception reply is decoded
// and returned as a server failure; any other reply is returned undecoded
// for the caller to parse. Every call is recorded against the member's metrics, labeled by message type
// and outcome, regardless of which higher-level operation issued it.
func (m *Member) send(ctx context.Context, reqType uint16, payload []byte) (proto.Message, error) {
	start := time.Now()
	msg := proto.Message{Type: reqType, PartitionID: proto.NoPartition, Payload: payload}
	resp, err := m.ch.Send(ctx, msg)
	if err != nil {
		m.metrics.ObserveRequest(messageTypeLabel(reqType), "error", time.Since(start).Seconds())
		return proto.Message{}, communicationFailure(err)
	}
	if resp.Type == proto.TypeExceptionResponse {
		exc, decErr := proto.DecodeExceptionResponse(resp.Payload)
		m.metrics.ObserveRequest(messageTypeLabel(reqType), "exception", time.Since(start).Seconds())
		if decErr != nil {
			return proto.Message{}, protocolViolation("decode exception response", decErr)
		}
		return proto.Message{}, serverFailure(exceptionToServerError(exc))
	}
	m.metrics.ObserveRequest(messageTypeLabel(reqType), "ok", time.Since(start).Seconds())
	return resp, nil
}

func messageTypeLabel(reqType uint16) string {
	return fmt.Sprintf("%#04x", reqType)
}

// close tears down the member's channel.
func (m *Member) close() error {
	return m.ch.Close()
}

func exceptionToServerError(exc proto.ExceptionResponse) *ServerError {
	se := &ServerError{
		Code:           exc.Code,
		ClassName:      exc.ClassName,
		StackTrace:     exc.StackTrace,
		CauseErrorCode: exc.CauseErrorCode,
	}
	if exc.Message != nil {
		se.Message = *exc.Message
	}
	if exc.CauseClassName != nil {
		se.CauseClassName = *exc.CauseClassName
	}
	return se
}
