// Package transport defines the socket abstraction channels use to exchange
// envelopes with a peer on the same host. It provides a common contract that all
// socket implementations must fulfill, so a channel never depends on the
// framing of the underlying socket.
//
// The package focuses on:
//   - Defining a small interface for connecting, reading and writing envelopes
//   - Reporting failures as temporary (retry later) or permanent (peer gone)
//   - Enabling multiple socket implementations (seqpacket and stream sockets)
//
// Key Components:
//
//   - ISocket: Interface for a local socket that transfers envelopes together
//     with their attached kernel handles.
//
//   - Status: Outcome of a socket operation. A permanent failure means the
//     socket must be closed.
//
// The implementations live in the subpackages base (shared socket plumbing and
// framing helpers) and unix (seqpacket and stream framers, listening and
// accepting).
package transport
