package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
)

// MaxMessageSize is the largest serialized message that fits into an envelope
// on every socket type (frame payload minus the length prefix)
const MaxMessageSize = base.MaxFramePayload - 4

// WriteEnvelope serializes msg into a new envelope carrying the given attachments
func WriteEnvelope(s IRPCSerializer, msg common.Message, attachments ...common.Attachment) (*common.Envelope, error) {
	data, err := s.Serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s message: %w", msg.MsgType, err)
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("serialized %s message has %d bytes, at most %d fit into an envelope", msg.MsgType, len(data), MaxMessageSize)
	}
	if len(attachments) > common.MaxAttachmentCount {
		return nil, fmt.Errorf("%d attachments, at most %d are allowed", len(attachments), common.MaxAttachmentCount)
	}

	e := common.NewEnvelopeWithCapacity(4 + len(data))
	e.EncodeBytes(data)
	for _, a := range attachments {
		e.AddAttachment(a)
	}
	return e, nil
}

// ReadEnvelope deserializes the message at the read cursor of e
func ReadEnvelope(s IRPCSerializer, e *common.Envelope) (common.Message, error) {
	var msg common.Message

	data, ok := e.DecodeBytes()
	if !ok {
		return msg, fmt.Errorf("envelope of %d bytes holds no message", e.Size())
	}
	if err := s.Deserialize(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to deserialize message: %w", err)
	}
	return msg, nil
}
