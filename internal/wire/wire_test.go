package wire

import (
	"bytes"
	"testing"
	"testing/quick"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	f := func(b bool, u8 uint8, u16 uint16, i32 int32, u32 uint32, i64 int64, u64 uint64, raw []byte) bool {
		w := NewWriter(0)
		w.WriteBool(b)
		w.WriteUint8(u8)
		w.WriteUint16(u16)
		w.WriteInt32(i32)
		w.WriteUint32(u32)
		w.WriteInt64(i64)
		w.WriteUint64(u64)
		w.WriteRaw(raw)
		if w.Error() != nil {
			t.Fatal(w.Error())
		}

		r := NewReader(w.Bytes())
		gotB := r.ReadBool()
		gotU8 := r.ReadUint8()
		gotU16 := r.ReadUint16()
		gotI32 := r.ReadInt32()
		gotU32 := r.ReadUint32()
		gotI64 := r.ReadInt64()
		gotU64 := r.ReadUint64()
		gotRaw := r.ReadRaw(len(raw))
		if r.Error() != nil {
			t.Fatal(r.Error())
		}
		return gotB == b && gotU8 == u8 && gotU16 == u16 && gotI32 == i32 &&
			gotU32 == u32 && gotI64 == i64 && gotU64 == u64 && bytes.Equal(gotRaw, raw)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	f := func(s string) bool {
		w := NewWriter(0)
		w.WriteString(s)
		r := NewReader(w.Bytes())
		got := r.ReadString()
		return r.Error() == nil && got == s
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestOptionalWireRepresentation(t *testing.T) {
	// present: one 0x00 byte then the value
	w := NewWriter(0)
	w.WritePresent()
	w.WriteUint32(7)
	if got := w.Bytes(); !bytes.Equal(got, []byte{0x00, 7, 0, 0, 0}) {
		t.Fatalf("present encoding = % x", got)
	}

	// absent: a single 0x01 byte, nothing more
	w = NewWriter(0)
	w.WriteAbsent()
	if got := w.Bytes(); !bytes.Equal(got, []byte{0x01}) {
		t.Fatalf("absent encoding = % x", got)
	}

	r := NewReader([]byte{0x00, 9, 0, 0, 0})
	if present := r.ReadPresent(); !present {
		t.Fatal("expected present")
	}
	if v := r.ReadUint32(); v != 9 {
		t.Fatalf("value = %d", v)
	}

	r = NewReader([]byte{0x01})
	if present := r.ReadPresent(); present {
		t.Fatal("expected absent")
	}
}

func TestSequenceLengthPrefix(t *testing.T) {
	w := NewWriter(0)
	w.WriteSequenceLen(3)
	w.WriteUint32(1)
	w.WriteUint32(2)
	w.WriteUint32(3)
	buf := w.Bytes()
	if len(buf) < 4 {
		t.Fatal("short buffer")
	}
	r := NewReader(buf[:4])
	if n := r.ReadSequenceLen(); n != 3 {
		t.Fatalf("length prefix = %d, want 3", n)
	}
}

func TestUnderflowIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2})
	r.ReadUint32() // needs 4 bytes, only 2 available
	if r.Error() != ErrUnderflow {
		t.Fatalf("err = %v, want ErrUnderflow", r.Error())
	}
	// further reads must not panic and must still report the error
	r.ReadUint64()
	if r.Error() != ErrUnderflow {
		t.Fatalf("err = %v after further reads, want ErrUnderflow", r.Error())
	}
}

func TestInvalidUTF8(t *testing.T) {
	w := NewWriter(0)
	w.WriteUint32(3)
	w.WriteRaw([]byte{0xff, 0xfe, 0xfd})
	r := NewReader(w.Bytes())
	r.ReadString()
	if r.Error() != ErrInvalidUTF8 {
		t.Fatalf("err = %v, want ErrInvalidUTF8", r.Error())
	}
}
