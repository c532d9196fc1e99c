// Package proto implements the message envelope, frame header, and record
// layouts of the cluster wire protocol.
package proto

// Message types, identified by the message_type field of the frame header.
// Requests and responses have their own types; note that
// CounterGetResponse and CounterAddResponse share wire type 0x7F —
// the caller, not the type tag, knows which shape to decode because it
// knows which request it sent.
const (
	TypeAuthenticationRequest       uint16 = 0x02
	TypeAuthenticationResponse      uint16 = 0x6B
	TypePingRequest                 uint16 = 0x0F
	TypePingResponse                uint16 = 0x64
	TypeExceptionResponse           uint16 = 0x6D
	TypeCounterGetRequest           uint16 = 0x2001
	TypeCounterGetResponse          uint16 = 0x7F
	TypeCounterAddRequest           uint16 = 0x2002
	TypeCounterAddResponse          uint16 = 0x7F
	TypeCounterReplicaCountRequest  uint16 = 0x2003
	TypeCounterReplicaCountResponse uint16 = 0x66
)

// Message is the in-memory envelope carrying a message's type, target
// partition, and encoded body. It is immutable once created; the channel
// never inspects anything beyond its header fields, leaving record
// decoding to whichever caller knows the expected response shape.
type Message struct {
	Type        uint16
	PartitionID int32
	Payload     []byte
}

// NoPartition is the sentinel this client always sends for PartitionID:
// the protocol reserves a partition identifier per message, but this
// client never targets a specific partition.
const NoPartition int32 = -1
