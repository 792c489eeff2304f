package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the structured payload the command line tools exchange over
// channels. It is serialized into the bytes of an Envelope (see package serializer).
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type" cbor:"1,keyasint"`

	// Seq is chosen by the sender and copied into replies. NotificationSeq
	// marks a message that is not answered.
	Seq uint64 `json:"seq,omitempty" cbor:"2,keyasint,omitempty"`

	// Body is the application data (text, ping padding, ...)
	Body []byte `json:"body,omitempty" cbor:"3,keyasint,omitempty"`

	// Err is empty if no error occurred, otherwise contains the error message
	Err string `json:"err,omitempty" cbor:"4,keyasint,omitempty"`

	// Meta information
	Meta []byte `json:"meta,omitempty" cbor:"5,keyasint,omitempty"`
}

// NotificationSeq is the sequence number of messages that expect no reply
const NotificationSeq uint64 = 0

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewTextMessage creates a new text message
func NewTextMessage(seq uint64, text string) *Message {
	return &Message{
		MsgType: MsgTText,
		Seq:     seq,
		Body:    []byte(text),
	}
}

// NewPingMessage creates a new ping carrying the given padding
func NewPingMessage(seq uint64, padding []byte) *Message {
	return &Message{
		MsgType: MsgTPing,
		Seq:     seq,
		Body:    padding,
	}
}

// NewPongMessage creates the reply to a ping
func NewPongMessage(ping *Message) *Message {
	return &Message{
		MsgType: MsgTPong,
		Seq:     ping.Seq,
		Body:    ping.Body,
	}
}

// NewSuccessResponse acknowledges a message
func NewSuccessResponse(seq uint64) *Message {
	return &Message{
		MsgType: MsgTSuccess,
		Seq:     seq,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(seq uint64, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Seq:     seq,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of a Message
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTText:
		return "text"
	case MsgTPing:
		return "ping"
	case MsgTPong:
		return "pong"
	case MsgTCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "unknown":
		*t = MsgTUnknown
	case "success":
		*t = MsgTSuccess
	case "error":
		*t = MsgTError
	case "text":
		*t = MsgTText
	case "ping":
		*t = MsgTPing
	case "pong":
		*t = MsgTPong
	case "custom":
		*t = MsgTCustom
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Acknowledges a message
	MsgTError               // Indicates an error occurred

	// Payload types

	MsgTText // Free form text
	MsgTPing // Round trip probe, answered with a pong
	MsgTPong // Answer to a ping

	// Custom operations

	MsgTCustom // Custom operation type
)
