package transport

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
)

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// Status is the outcome of a transport operation
type Status int

const (
	// StatusSuccess means the operation completed
	StatusSuccess Status = iota
	// StatusTemporaryFailure means the operation failed but the socket is still usable
	StatusTemporaryFailure
	// StatusPermanentFailure means the peer is gone; the socket must be closed
	StatusPermanentFailure
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTemporaryFailure:
		return "temporary failure"
	case StatusPermanentFailure:
		return "permanent failure"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Socket
// --------------------------------------------------------------------------

// ISocket is a connected or connectable local socket that transfers envelopes.
// One read or write runs at a time per socket; callers may use it from
// several goroutines.
type ISocket interface {
	// Handle returns the kernel handle of the socket (-1 once closed)
	Handle() int
	// Connect connects the socket to a listening endpoint. It returns false if
	// the socket is closed or the endpoint does not accept the connection.
	Connect(endpoint string) bool
	// Close closes the socket. It returns true only if a handle was closed.
	Close() bool
	// WriteMessage sends one envelope and its attachments
	WriteMessage(e *common.Envelope) Status
	// ReadMessages reads all envelopes available without blocking. On failure
	// the envelopes read before the failure are returned as well.
	ReadMessages() (Status, []*common.Envelope)
}
