package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format.
// Every message carries its own type description, which makes gob the
// largest of the formats on the wire.
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob leaves fields that were zero on the sender untouched
	*msg = common.Message{}

	r := bytes.NewReader(b)
	if err := gob.NewDecoder(r).Decode(msg); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d bytes of trailing data after gob message", r.Len())
	}
	return nil
}
