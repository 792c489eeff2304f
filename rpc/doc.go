// Package rpc provides the message passing layer of dLoop. Channels connect
// processes on the same host through local sockets and exchange envelopes
// that may carry kernel handles, driven by the event loop of package looper.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the rpc packages,
//     including the Envelope format, attachments, the Message protocol,
//     configuration structures, and logging.
//
//   - transport: Socket abstractions with seqpacket and stream implementations
//     (subpackages base and unix).
//
//   - channel: Bidirectional connections that schedule into a looper and
//     report received envelopes and termination through callbacks.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB, CBOR)
//     for converting between Message objects and envelopes.
//
//   - server: Listener and Service components that accept connections and
//     answer messages.
//
//   - client: Request/response client on top of a single channel.
package rpc
