// Package shm provides anonymous shared memory segments whose handles can be
// passed to other processes as envelope attachments.
//
// Key Components:
//
//   - Segment: A memory mapping plus the handle backing it. New creates a fresh
//     segment (memfd on Linux, an immediately unlinked temp file elsewhere),
//     Map maps a handle received from a peer.
package shm
