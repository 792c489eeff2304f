package common

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Run("uint32", func(t *testing.T) {
		e := NewEnvelope()
		Encode(e, uint32(0xDEADBEEF))
		if e.Size() != 4 {
			t.Fatalf("Expected size 4, got %d", e.Size())
		}

		var v uint32
		if !Decode(e, &v) || v != 0xDEADBEEF {
			t.Errorf("Expected 0xDEADBEEF, got %#x", v)
		}
	})

	t.Run("float64", func(t *testing.T) {
		e := NewEnvelope()
		Encode(e, 3.14159)

		var v float64
		if !Decode(e, &v) || v != 3.14159 {
			t.Errorf("Expected 3.14159, got %v", v)
		}
	})

	t.Run("named type", func(t *testing.T) {
		e := NewEnvelope()
		Encode(e, MsgTPing)

		var v MessageType
		if !Decode(e, &v) || v != MsgTPing {
			t.Errorf("Expected %s, got %s", MsgTPing, v)
		}
	})
}

func TestDecodeMultipleTypes(t *testing.T) {
	e := NewEnvelope()
	Encode(e, uint32(42))
	Encode(e, true)
	Encode(e, float32(1.5))
	Encode(e, byte('c'))
	Encode(e, int64(-7))

	var (
		u uint32
		b bool
		f float32
		c byte
		i int64
	)
	require.True(t, Decode(e, &u))
	require.True(t, Decode(e, &b))
	require.True(t, Decode(e, &f))
	require.True(t, Decode(e, &c))
	require.True(t, Decode(e, &i))

	require.Equal(t, uint32(42), u)
	require.True(t, b)
	require.Equal(t, float32(1.5), f)
	require.Equal(t, byte('c'), c)
	require.Equal(t, int64(-7), i)
	require.Equal(t, e.Size(), e.SizeRead())

	// a sixth decode must fail without side effects
	extra := int32(99)
	require.False(t, Decode(e, &extra))
	require.Equal(t, int32(99), extra)
	require.Equal(t, e.Size(), e.SizeRead())
}

func TestDecodePartialValueFails(t *testing.T) {
	e := NewEnvelope()
	Encode(e, uint16(1))

	var v uint32
	if Decode(e, &v) {
		t.Fatal("Decoding 4 bytes from a 2 byte envelope succeeded")
	}
	if e.SizeRead() != 0 {
		t.Errorf("Failed decode moved the cursor to %d", e.SizeRead())
	}
}

func TestEncodeBytesAndStrings(t *testing.T) {
	e := NewEnvelope()
	e.EncodeString("hello")
	e.EncodeBytes([]byte{1, 2, 3})
	e.EncodeBytes(nil)

	s, ok := e.DecodeString()
	require.True(t, ok)
	require.Equal(t, "hello", s)

	b, ok := e.DecodeBytes()
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, b)

	b, ok = e.DecodeBytes()
	require.True(t, ok)
	require.Empty(t, b)

	_, ok = e.DecodeBytes()
	require.False(t, ok)
}

func TestDecodeBytesTruncated(t *testing.T) {
	e := NewEnvelope()
	Encode(e, uint32(10))
	e.Append([]byte("short"))

	_, ok := e.DecodeBytes()
	require.False(t, ok)
	require.Equal(t, 0, e.SizeRead(), "failed decode must not move the cursor")
}

func TestRewind(t *testing.T) {
	e := NewEnvelopeFromBytes([]byte{7})

	var v byte
	require.True(t, Decode(e, &v))
	require.Equal(t, 0, e.Remaining())

	e.Rewind()
	require.Equal(t, 1, e.Remaining())
	require.True(t, Decode(e, &v))
	require.Equal(t, byte(7), v)
}

func TestReserveGrowsToPowerOfTwo(t *testing.T) {
	e := NewEnvelope()
	e.Reserve(3)
	require.Equal(t, minEnvelopeCapacity, len(e.buffer))

	e.Append(make([]byte, 17))
	require.Equal(t, 32, len(e.buffer))

	e.Append(make([]byte, 100))
	require.Equal(t, 128, len(e.buffer))
	require.Equal(t, 117, e.Size())
}

func TestNewEnvelopeFromBytesCopies(t *testing.T) {
	data := []byte("abc")
	e := NewEnvelopeFromBytes(data)
	data[0] = 'x'

	require.Equal(t, []byte("abc"), e.Data())
}

func TestAttachmentLimit(t *testing.T) {
	e := NewEnvelope()
	for i := 0; i < MaxAttachmentCount; i++ {
		e.AddAttachment(NewAttachment(i))
	}
	require.Len(t, e.Attachments(), MaxAttachmentCount)
	require.Equal(t, 3, e.Attachments()[3].Handle())

	require.Panics(t, func() { e.AddAttachment(NewAttachment(100)) })
}
