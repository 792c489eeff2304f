// Package serializer provides structured payloads for dLoop envelopes. It
// defines a common interface and multiple implementations for serializing and
// deserializing common.Message values, plus helpers that put a serialized
// message into an envelope and take it out again.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. Uses a flag byte to encode only
//     present fields, resulting in the smallest envelopes.
//
//   - cborSerializerImpl: CBOR (RFC 8949) with integer keys, compact and
//     readable by non-Go peers.
//
//   - gobSerializerImpl: Go's built-in gob encoding. Every message carries its
//     type description, so it produces the largest envelopes.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging.
//
//   - lz4SerializerImpl: Wraps any of the above and compresses its output with
//     block mode lz4, so compressible messages beyond MaxMessageSize still fit.
//     FromName builds it for names with a "+lz4" suffix.
//
//   - WriteEnvelope / ReadEnvelope: Store a serialized message as a length
//     prefixed byte field, so the message survives the one byte padding of
//     empty seqpacket records. Messages larger than MaxMessageSize are rejected.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	e, err := serializer.WriteEnvelope(s, *common.NewTextMessage(1, "hello"))
//	// ... send e over a channel ...
//	msg, err := serializer.ReadEnvelope(s, received)
package serializer
