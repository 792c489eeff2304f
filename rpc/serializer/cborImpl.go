package serializer

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using the CBOR format (RFC 8949)
// with integer keys
func NewCBORSerializer() IRPCSerializer {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		Logger.Panicf("could not create cbor encoder: %v", err)
	}
	return &cborSerializerImpl{enc: mode}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
	enc cbor.EncMode
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.enc.Marshal(msg)
}

func (c cborSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// fields missing from b must not keep old values
	*msg = common.Message{}
	return cbor.Unmarshal(b, msg)
}
