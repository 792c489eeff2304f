// Package unix implements the local domain socket transports of dLoop. It
// provides message oriented communication, including passing of kernel
// handles, between processes running on the same machine.
//
// This package extends the base transport layer with socket type specific
// framers while inheriting socket creation, locking and the raw send and
// receive calls from the base package.
//
// Key Components:
//
//   - seqPacketFramer: Packet preserving sockets (SOCK_SEQPACKET). One envelope
//     is one kernel record; a read drains all pending records.
//
//   - streamFramer: Byte stream sockets (SOCK_STREAM). Envelopes are sent as
//     frames with a 2 byte host order length prefix; bytes of incomplete frames
//     are carried over to the next read.
//
//   - Factory functions: NewSocket, Create and CreatePair build sockets of a
//     given or the automatically detected type. SupportedSocketType probes the
//     kernel once for seqpacket support.
//
//   - Listen / Accept: Listening sockets for the server package.
//
// Limits:
//
//   - Envelopes: at most 4096 bytes (seqpacket) or 4094 bytes (stream)
//   - Attachments: at most 8 handles per envelope
//   - Endpoints: at most 96 bytes
package unix
