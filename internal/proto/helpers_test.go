package proto

import "github.com/gridcore/client/internal/wire"

// recorder is a thin, test-only convenience wrapper for building raw
// payload bytes without spelling out the full wire.Writer call for every
// field.
type recorder struct{ w *wire.Writer }

func (r *recorder) u8(v uint8)   { r.w.WriteUint8(v) }
func (r *recorder) u32(v uint32) { r.w.WriteUint32(v) }
func (r *recorder) i32(v int32)  { r.w.WriteInt32(v) }
func (r *recorder) i64(v int64)  { r.w.WriteInt64(v) }
func (r *recorder) str(s string) { r.w.WriteString(s) }
func (r *recorder) present()     { r.w.WritePresent() }
func (r *recorder) absent()      { r.w.WriteAbsent() }
func (r *recorder) seqLen(n int) { r.w.WriteSequenceLen(n) }

func encoderHelper(fn func(*recorder)) []byte {
	w := wire.NewWriter(64)
	fn(&recorder{w: w})
	return w.Bytes()
}
