// Package base provides the foundation of the local socket transports. It
// implements everything that does not depend on the kernel socket type and
// is extended with socket type specific framers (see package unix).
//
// The package focuses on:
//   - Creating and configuring non-blocking local sockets with small kernel buffers
//   - Serializing concurrent reads and writes on one socket with a lock
//   - Sending scatter/gather messages with passed handles in one system call
//   - Receiving messages together with their passed handles
//
// Key Components:
//
//   - IFramer: Interface for the socket type specific operations that turn
//     envelopes into kernel messages and back.
//
//   - Socket: Implements transport.ISocket on top of a framer. Owns the kernel
//     handle, the receive buffer and the ancillary data buffer, and offers the
//     raw Send and Receive calls framers are built on.
//
//   - IFramerCloser: Optional framer hook run when the socket closes, used to
//     release received handles of an incomplete frame.
//
//   - Frame helpers: 2 byte length prefix used by stream framers.
//
// Error Handling:
//
//	Sends that hit a full kernel buffer wait for the socket to become writable
//	and retry. EINTR is retried everywhere. EPIPE and ECONNRESET map to a
//	permanent failure, every other error to a temporary one. Truncated ancillary
//	data and sockets that cannot be created are fatal.
//
// Thread Safety:
//
//	All public methods of Socket are safe for concurrent use. Framers are only
//	called with the socket's lock held.
package base
