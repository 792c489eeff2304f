package serializer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/pierrec/lz4/v4"
)

const (
	// lz4Raw marks data stored as produced by the inner serializer
	lz4Raw byte = 0
	// lz4Block marks an lz4 block preceded by the uncompressed size (u32)
	lz4Block byte = 1

	// maxUncompressedSize bounds the allocation made for a received block
	maxUncompressedSize = 64 * MaxMessageSize
)

// NewLZ4Serializer wraps inner and compresses its output with block mode lz4.
// Output that does not shrink is stored raw, so the overhead is one byte.
//
// Format: [tag u8][uncompressed size u32]?[data]
func NewLZ4Serializer(inner IRPCSerializer) IRPCSerializer {
	return &lz4SerializerImpl{inner: inner}
}

// lz4SerializerImpl implements the IRPCSerializer interface by compressing the
// output of another serializer
type lz4SerializerImpl struct {
	inner IRPCSerializer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (z lz4SerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := z.inner.Serialize(msg)
	if err != nil {
		return nil, err
	}

	if len(data) <= maxUncompressedSize {
		buf := make([]byte, 5+lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, buf[5:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// 0 means incompressible
		if written > 0 && written+4 < len(data) {
			buf[0] = lz4Block
			binary.BigEndian.PutUint32(buf[1:5], uint32(len(data)))
			return buf[:5+written], nil
		}
	}

	out := make([]byte, 1+len(data))
	out[0] = lz4Raw
	copy(out[1:], data)
	return out, nil
}

func (z lz4SerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) < 1 {
		return errors.New("data too short for compression tag")
	}

	switch b[0] {
	case lz4Raw:
		return z.inner.Deserialize(b[1:], msg)
	case lz4Block:
		if len(b) < 5 {
			return errors.New("data too short for uncompressed size")
		}
		size := int(binary.BigEndian.Uint32(b[1:5]))
		if size > maxUncompressedSize {
			return fmt.Errorf("uncompressed size %d exceeds %d bytes", size, maxUncompressedSize)
		}
		data := make([]byte, size)
		read, err := lz4.UncompressBlock(b[5:], data)
		if err != nil {
			return fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return z.inner.Deserialize(data, msg)
	default:
		return fmt.Errorf("unsupported compression tag: %d", b[0])
	}
}
