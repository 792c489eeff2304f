package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for small envelopes
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	[type u8][flags u8][seq u64]?[body u32+bytes]?[err u32+bytes]?[meta u32+bytes]?
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasSeq  byte = 1 << 0
	hasBody byte = 1 << 1
	hasErr  byte = 1 << 2
	hasMeta byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags byte = 0
	pos := 2 // Start after MsgType and flags

	// Handle Seq
	if msg.Seq > 0 {
		flags |= hasSeq
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Seq)
		pos += 8
	}

	// Handle Body
	if msg.Body != nil {
		flags |= hasBody
		pos = putBytes(result, pos, msg.Body)
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		pos = putBytes(result, pos, []byte(msg.Err))
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		putBytes(result, pos, msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	pos := 2

	// Read Seq if present
	if flags&hasSeq != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for seq")
		}
		msg.Seq = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.Seq = 0
	}

	var err error

	// Read Body if present
	if flags&hasBody != 0 {
		if msg.Body, pos, err = readBytes(data, pos, msg.Body, "body"); err != nil {
			return err
		}
	} else {
		msg.Body = nil
	}

	// Read Err if present
	if flags&hasErr != 0 {
		var errBytes []byte
		if errBytes, pos, err = readBytes(data, pos, nil, "error"); err != nil {
			return err
		}
		msg.Err = string(errBytes)
	} else {
		msg.Err = ""
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		if msg.Meta, _, err = readBytes(data, pos, msg.Meta, "meta"); err != nil {
			return err
		}
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Seq > 0 {
		size += 8 // uint64
	}
	if msg.Body != nil {
		size += 4 + len(msg.Body) // 4 bytes for length + body bytes
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta) // 4 bytes for length + meta bytes
	}

	return size
}

// putBytes writes a length prefixed field at pos and returns the position after it
func putBytes(dst []byte, pos int, field []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(field)))
	pos += 4
	copy(dst[pos:pos+len(field)], field)
	return pos + len(field)
}

// readBytes reads a length prefixed field at pos. The slice reuse is only
// reused if it is large enough. An empty field yields an empty (not nil) slice.
func readBytes(data []byte, pos int, reuse []byte, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s length", name)
	}

	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if pos+n > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s data", name)
	}

	// Allocate only if needed
	if reuse == nil || cap(reuse) < n {
		reuse = make([]byte, n)
	} else {
		reuse = reuse[:n]
	}
	copy(reuse, data[pos:pos+n])

	return reuse, pos + n, nil
}
