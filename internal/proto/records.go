package proto

import "github.com/gridcore/client/internal/wire"

// Address is (host, port), used both as a member identity key and as a
// field inside request payloads.
type Address struct {
	Host string
	Port uint32
}

func (a Address) encode(w *wire.Writer) {
	w.WriteString(a.Host)
	w.WriteUint32(a.Port)
}

func decodeAddress(r *wire.Reader) Address {
	return Address{Host: r.ReadString(), Port: r.ReadUint32()}
}

// ReplicaTimestampEntry is one vector-clock entry identifying a replica and
// the counter version it has observed.
type ReplicaTimestampEntry struct {
	Key   string
	Value int64
}

func (e ReplicaTimestampEntry) encode(w *wire.Writer) {
	w.WriteString(e.Key)
	w.WriteInt64(e.Value)
}

func decodeReplicaTimestampEntry(r *wire.Reader) ReplicaTimestampEntry {
	return ReplicaTimestampEntry{Key: r.ReadString(), Value: r.ReadInt64()}
}

func encodeReplicaTimestamps(w *wire.Writer, ts []ReplicaTimestampEntry) {
	w.WriteSequenceLen(len(ts))
	for _, e := range ts {
		e.encode(w)
	}
}

func decodeReplicaTimestamps(r *wire.Reader) []ReplicaTimestampEntry {
	n := r.ReadSequenceLen()
	if n == 0 {
		return nil
	}
	out := make([]ReplicaTimestampEntry, n)
	for i := range out {
		out[i] = decodeReplicaTimestampEntry(r)
	}
	return out
}

// StackTraceEntry is one frame of a server-side exception's stack trace,
// part of ExceptionResponse's stack trace sequence.
type StackTraceEntry struct {
	DeclaringClass string
	MethodName     string
	FileName       string
	LineNumber     int32
}

func decodeStackTraceEntry(r *wire.Reader) StackTraceEntry {
	return StackTraceEntry{
		DeclaringClass: r.ReadString(),
		MethodName:     r.ReadString(),
		FileName:       r.ReadString(),
		LineNumber:     r.ReadInt32(),
	}
}

func decodeStackTrace(r *wire.Reader) []StackTraceEntry {
	n := r.ReadSequenceLen()
	if n == 0 {
		return nil
	}
	out := make([]StackTraceEntry, n)
	for i := range out {
		out[i] = decodeStackTraceEntry(r)
	}
	return out
}

// ---- AuthenticationRequest / AuthenticationResponse (0x02 / 0x6B) ----

// AuthenticationRequest is the handshake request a Member sends on
// connect. ID and OwnerID are optional and normally absent on a first
// connection; OwnerConnection is always true for this client.
type AuthenticationRequest struct {
	Username              string
	Password              string
	ID                    *string
	OwnerID               *string
	ClientType             string
	SerializationVersion   uint8
	ClientVersion          string
}

func (a AuthenticationRequest) Encode() []byte {
	w := wire.NewWriter(64)
	w.WriteString(a.Username)
	w.WriteString(a.Password)
	encodeOptionalString(w, a.ID)
	encodeOptionalString(w, a.OwnerID)
	w.WriteBool(true) // owner_connection = true
	w.WriteString(a.ClientType)
	w.WriteUint8(a.SerializationVersion)
	w.WriteString(a.ClientVersion)
	return w.Bytes()
}

// AuthenticationStatus is the server's fixed set of authentication outcomes.
type AuthenticationStatus uint8

const (
	StatusAuthenticated        AuthenticationStatus = 0
	StatusCredentialsFailed    AuthenticationStatus = 1
	StatusSerializationMismatch AuthenticationStatus = 2
	StatusNotAllowedInCluster  AuthenticationStatus = 3
)

func (s AuthenticationStatus) String() string {
	switch s {
	case StatusAuthenticated:
		return "Authenticated"
	case StatusCredentialsFailed:
		return "CredentialsFailed"
	case StatusSerializationMismatch:
		return "SerializationVersionMismatch"
	case StatusNotAllowedInCluster:
		return "NotAllowedInCluster"
	default:
		return "Unknown"
	}
}

// AuthenticationResponse is decoded through the status and identity
// fields only. The trailing optional<sequence<ClusterMember>> advertises
// the rest of the cluster for membership discovery, which this client
// does not implement, so it is deliberately left unread: nothing in the
// frame depends on having consumed it, since the frame's boundary comes
// from the header, not from the payload content.
type AuthenticationResponse struct {
	Status               AuthenticationStatus
	Address              *Address
	ID                   *string
	OwnerID              *string
	SerializationVersion uint8
}

func DecodeAuthenticationResponse(payload []byte) (AuthenticationResponse, error) {
	r := wire.NewReader(payload)
	var resp AuthenticationResponse
	resp.Status = AuthenticationStatus(r.ReadUint8())
	if r.ReadPresent() {
		a := decodeAddress(r)
		resp.Address = &a
	}
	if r.ReadPresent() {
		s := r.ReadString()
		resp.ID = &s
	}
	if r.ReadPresent() {
		s := r.ReadString()
		resp.OwnerID = &s
	}
	resp.SerializationVersion = r.ReadUint8()
	if err := r.Error(); err != nil {
		return AuthenticationResponse{}, err
	}
	return resp, nil
}

// ---- Ping (0x0F / 0x64) ----

// PingRequest and PingResponse carry no fields.
type PingRequest struct{}

func (PingRequest) Encode() []byte { return nil }

type PingResponse struct{}

func DecodePingResponse([]byte) (PingResponse, error) { return PingResponse{}, nil }

// ---- ExceptionResponse (0x6D) ----

// ExceptionResponse is the server's error envelope for any request.
type ExceptionResponse struct {
	Code            int32
	ClassName       string
	Message         *string
	StackTrace      []StackTraceEntry
	CauseErrorCode  uint32
	CauseClassName  *string
}

func DecodeExceptionResponse(payload []byte) (ExceptionResponse, error) {
	r := wire.NewReader(payload)
	var e ExceptionResponse
	e.Code = r.ReadInt32()
	e.ClassName = r.ReadString()
	if r.ReadPresent() {
		s := r.ReadString()
		e.Message = &s
	}
	e.StackTrace = decodeStackTrace(r)
	e.CauseErrorCode = r.ReadUint32()
	if r.ReadPresent() {
		s := r.ReadString()
		e.CauseClassName = &s
	}
	if err := r.Error(); err != nil {
		return ExceptionResponse{}, err
	}
	return e, nil
}

// ---- Counter records (0x2001-0x2003 / 0x7F / 0x66) ----

// CounterGetRequest asks for the current value of a named counter.
type CounterGetRequest struct {
	Name              string
	ReplicaTimestamps []ReplicaTimestampEntry
	Address           Address
}

func (r CounterGetRequest) Encode() []byte {
	w := wire.NewWriter(32)
	w.WriteString(r.Name)
	encodeReplicaTimestamps(w, r.ReplicaTimestamps)
	r.Address.encode(w)
	return w.Bytes()
}

// CounterGetResponse is the 0x7F reply to CounterGetRequest.
type CounterGetResponse struct {
	Value             int64
	ReplicaTimestamps []ReplicaTimestampEntry
}

func DecodeCounterGetResponse(payload []byte) (CounterGetResponse, error) {
	r := wire.NewReader(payload)
	resp := CounterGetResponse{Value: r.ReadInt64()}
	resp.ReplicaTimestamps = decodeReplicaTimestamps(r)
	if err := r.Error(); err != nil {
		return CounterGetResponse{}, err
	}
	return resp, nil
}

// CounterAddRequest asks the server to apply delta to a named counter.
// GetBeforeUpdate selects whether the returned value is the state before
// or after applying delta.
type CounterAddRequest struct {
	Name              string
	Delta             int64
	GetBeforeUpdate   bool
	ReplicaTimestamps []ReplicaTimestampEntry
	Address           Address
}

func (r CounterAddRequest) Encode() []byte {
	w := wire.NewWriter(32)
	w.WriteString(r.Name)
	w.WriteInt64(r.Delta)
	w.WriteBool(r.GetBeforeUpdate)
	encodeReplicaTimestamps(w, r.ReplicaTimestamps)
	r.Address.encode(w)
	return w.Bytes()
}

// CounterAddResponse is the 0x7F reply to CounterAddRequest; it shares its
// wire type with CounterGetResponse but carries an extra trailing field,
// so the caller must know which request it sent before decoding.
type CounterAddResponse struct {
	Value             int64
	ReplicaTimestamps []ReplicaTimestampEntry
	ReplicaCount      uint32
}

func DecodeCounterAddResponse(payload []byte) (CounterAddResponse, error) {
	r := wire.NewReader(payload)
	resp := CounterAddResponse{Value: r.ReadInt64()}
	resp.ReplicaTimestamps = decodeReplicaTimestamps(r)
	resp.ReplicaCount = r.ReadUint32()
	if err := r.Error(); err != nil {
		return CounterAddResponse{}, err
	}
	return resp, nil
}

// CounterReplicaCountRequest asks how many replicas back a named counter.
type CounterReplicaCountRequest struct {
	Name string
}

func (r CounterReplicaCountRequest) Encode() []byte {
	w := wire.NewWriter(16)
	w.WriteString(r.Name)
	return w.Bytes()
}

// CounterReplicaCountResponse is the 0x66 reply.
type CounterReplicaCountResponse struct {
	Count uint32
}

func DecodeCounterReplicaCountResponse(payload []byte) (CounterReplicaCountResponse, error) {
	r := wire.NewReader(payload)
	resp := CounterReplicaCountResponse{Count: r.ReadUint32()}
	if err := r.Error(); err != nil {
		return CounterReplicaCountResponse{}, err
	}
	return resp, nil
}

func encodeOptionalString(w *wire.Writer, s *string) {
	if s == nil {
		w.WriteAbsent()
		return
	}
	w.WritePresent()
	w.WriteString(*s)
}
