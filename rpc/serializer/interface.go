package serializer

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
)

var Logger = logger.GetLogger("rpc")

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// FromName returns the serializer for name (binary, json, gob or cbor). A
// "+lz4" suffix (e.g. "json+lz4") wraps it with NewLZ4Serializer.
func FromName(name string) (IRPCSerializer, bool) {
	if inner, ok := strings.CutSuffix(name, "+lz4"); ok {
		s, ok := FromName(inner)
		if !ok {
			return nil, false
		}
		return NewLZ4Serializer(s), true
	}

	switch name {
	case "binary":
		return NewBinarySerializer(), true
	case "json":
		return NewJSONSerializer(), true
	case "gob":
		return NewGOBSerializer(), true
	case "cbor":
		return NewCBORSerializer(), true
	default:
		return nil, false
	}
}
