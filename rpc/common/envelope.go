package common

import (
	"encoding/binary"
	"github.com/lni/dragonboat/v4/logger"
	"math/bits"
)

var Logger = logger.GetLogger("rpc")

const (
	// MaxAttachmentCount is the maximum number of handles one envelope can carry
	MaxAttachmentCount = 8

	// minEnvelopeCapacity is the smallest buffer an envelope allocates
	minEnvelopeCapacity = 16
)

// Scalar is the set of fixed size values an Envelope can encode
type Scalar interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// Envelope is the unit of transfer between two channels: a growable byte
// buffer with a write cursor, an independent decode cursor and up to
// MaxAttachmentCount attached kernel handles.
//
// Scalars are encoded in host byte order; envelopes never leave the host.
type Envelope struct {
	buffer      []byte
	dataLength  int
	sizeRead    int
	attachments []Attachment
}

// NewEnvelope creates an empty envelope
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// NewEnvelopeWithCapacity creates an empty envelope with room for n bytes
func NewEnvelopeWithCapacity(n int) *Envelope {
	e := &Envelope{}
	e.Reserve(n)
	return e
}

// NewEnvelopeFromBytes creates an envelope holding a copy of data
func NewEnvelopeFromBytes(data []byte) *Envelope {
	e := NewEnvelopeWithCapacity(len(data))
	e.Append(data)
	return e
}

// Reserve makes room for n more bytes after the written data. The buffer
// grows to the next power of two.
func (e *Envelope) Reserve(n int) {
	required := e.dataLength + n
	if required <= len(e.buffer) {
		return
	}

	capacity := minEnvelopeCapacity
	if required > capacity {
		capacity = 1 << bits.Len(uint(required-1))
	}

	buffer := make([]byte, capacity)
	copy(buffer, e.buffer[:e.dataLength])
	e.buffer = buffer
}

// Append writes raw bytes after the written data
func (e *Envelope) Append(data []byte) {
	e.Reserve(len(data))
	e.dataLength += copy(e.buffer[e.dataLength:], data)
}

// Data returns the written bytes. The slice aliases the envelope's buffer.
func (e *Envelope) Data() []byte {
	return e.buffer[:e.dataLength]
}

// Size returns the number of written bytes
func (e *Envelope) Size() int {
	return e.dataLength
}

// SizeRead returns the position of the decode cursor
func (e *Envelope) SizeRead() int {
	return e.sizeRead
}

// Remaining returns the number of written bytes not decoded yet
func (e *Envelope) Remaining() int {
	return e.dataLength - e.sizeRead
}

// Rewind moves the decode cursor back to the start
func (e *Envelope) Rewind() {
	e.sizeRead = 0
}

// Attachments returns the attached handles in the order they were added
func (e *Envelope) Attachments() []Attachment {
	return e.attachments
}

// AddAttachment attaches a handle. Attaching more than MaxAttachmentCount
// handles is a programming error and fatal.
func (e *Envelope) AddAttachment(a Attachment) {
	if len(e.attachments) >= MaxAttachmentCount {
		Logger.Panicf("envelope already carries %d attachments", MaxAttachmentCount)
	}
	e.attachments = append(e.attachments, a)
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode appends the host byte order representation of value
func Encode[T Scalar](e *Envelope, value T) {
	size := binary.Size(value)
	e.Reserve(size)
	if _, err := binary.Encode(e.buffer[e.dataLength:], binary.NativeEndian, value); err != nil {
		Logger.Panicf("could not encode %T: %v", value, err)
	}
	e.dataLength += size
}

// Decode reads the next value at the decode cursor. It returns false, leaving
// value and the cursor untouched, if fewer bytes than needed remain.
func Decode[T Scalar](e *Envelope, value *T) bool {
	var decoded T
	size := binary.Size(decoded)
	if e.sizeRead+size > e.dataLength {
		return false
	}
	if _, err := binary.Decode(e.buffer[e.sizeRead:e.dataLength], binary.NativeEndian, &decoded); err != nil {
		return false
	}
	*value = decoded
	e.sizeRead += size
	return true
}

// EncodeBytes appends data prefixed with its uint32 length
func (e *Envelope) EncodeBytes(data []byte) {
	Encode(e, uint32(len(data)))
	e.Append(data)
}

// DecodeBytes reads a length prefixed byte slice. The result is a copy. On
// failure the cursor is left untouched.
func (e *Envelope) DecodeBytes() ([]byte, bool) {
	start := e.sizeRead

	var length uint32
	if !Decode(e, &length) {
		return nil, false
	}
	if e.sizeRead+int(length) > e.dataLength {
		e.sizeRead = start
		return nil, false
	}

	data := make([]byte, length)
	e.sizeRead += copy(data, e.buffer[e.sizeRead:e.sizeRead+int(length)])
	return data, true
}

// EncodeString appends s prefixed with its uint32 length
func (e *Envelope) EncodeString(s string) {
	Encode(e, uint32(len(s)))
	e.Reserve(len(s))
	e.dataLength += copy(e.buffer[e.dataLength:], s)
}

// DecodeString reads a length prefixed string. On failure the cursor is left untouched.
func (e *Envelope) DecodeString() (string, bool) {
	data, ok := e.DecodeBytes()
	if !ok {
		return "", false
	}
	return string(data), true
}
