package proto

import (
	"errors"
	"fmt"

	"github.com/gridcore/client/internal/wire"
)

// ErrMalformedDataOffset is returned when a received frame's data_offset
// is less than the fixed header size of 22 bytes.
var ErrMalformedDataOffset = errors.New("proto: data_offset < 22")

const (
	protocolVersion  uint8 = 1
	flagsUnfragmented uint8 = 0x80 | 0x40 // begin | end
	fixedHeaderSize        = 22
)

// EncodeFrame lays out the fixed frame header followed by the message
// payload, and returns the complete on-wire frame including its own
// 4-byte length prefix.
func EncodeFrame(msg Message, correlationID uint64) []byte {
	w := wire.NewWriter(fixedHeaderSize + len(msg.Payload))

	total := uint32(fixedHeaderSize + len(msg.Payload))
	w.WriteUint32(total)
	w.WriteUint8(protocolVersion)
	w.WriteUint8(flagsUnfragmented)
	w.WriteUint16(msg.Type)
	w.WriteUint64(correlationID)
	w.WriteInt32(msg.PartitionID)
	w.WriteUint16(fixedHeaderSize)
	w.WriteRaw(msg.Payload)

	return w.Bytes()
}

// DecodeFrame reads the fixed header from a complete on-wire frame
// (including its 4-byte length prefix) and returns the enclosed message
// and correlation id. It tolerates data_offset > 22 by skipping the
// reserved extension bytes, and rejects data_offset < 22.
func DecodeFrame(frame []byte) (msg Message, correlationID uint64, err error) {
	r := wire.NewReader(frame)

	_ = r.ReadUint32() // frame length, already known from len(frame)
	_ = r.ReadUint8()  // protocol version
	_ = r.ReadUint8()  // flags
	msgType := r.ReadUint16()
	correlationID = r.ReadUint64()
	partitionID := r.ReadInt32()
	dataOffset := r.ReadUint16()

	if err = r.Error(); err != nil {
		return Message{}, 0, fmt.Errorf("proto: decode frame header: %w", err)
	}
	if dataOffset < fixedHeaderSize {
		return Message{}, 0, ErrMalformedDataOffset
	}

	r.Skip(int(dataOffset) - fixedHeaderSize)
	payload := r.ReadRemaining()
	if err = r.Error(); err != nil {
		return Message{}, 0, fmt.Errorf("proto: decode frame payload: %w", err)
	}

	msg = Message{Type: msgType, PartitionID: partitionID, Payload: payload}
	return msg, correlationID, nil
}

// FrameLength reads just the 4-byte length prefix of a frame, for use by
// the channel's length-delimited reader before the rest of the frame has
// arrived.
func FrameLength(prefix [4]byte) uint32 {
	return uint32(prefix[0]) | uint32(prefix[1])<<8 | uint32(prefix[2])<<16 | uint32(prefix[3])<<24
}
