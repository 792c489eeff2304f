// Package common provides core data structures and utilities shared across
// the dLoop rpc packages. It defines the unit of transfer between channels,
// configuration structures and the logging setup used by every other package.
//
// The package focuses on:
//   - The envelope format exchanged by channels, including passed kernel handles
//   - Configuration structures for listeners and connecting clients
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Envelope: Growable byte buffer with independent write and decode cursors.
//     Fixed size scalars are encoded in host byte order with the generic Encode
//     and Decode functions; Decode never moves the cursor on failure. Up to
//     MaxAttachmentCount kernel handles can be attached.
//
//   - Attachment: A kernel handle travelling with an envelope. Attachments never
//     close their handle.
//
//   - Message: Structured payload used by the command line tools, carried inside
//     envelopes by the serializers of package serializer.
//
//   - ServerConfig / ClientConfig: Configuration for listeners and connecting
//     channels, with a readable String representation.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
