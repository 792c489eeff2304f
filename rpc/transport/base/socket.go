package base

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sys/unix"
	"sync"
)

var Logger = logger.GetLogger("transport")

const (
	// MaxBufferSize is the size of the receive buffer and the kernel socket
	// buffers. No envelope (plus framing) larger than this can be sent.
	MaxBufferSize = 4096

	// MaxEndpointLength is the maximum length of an endpoint path
	MaxEndpointLength = 96
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IFramer defines the socket type specific part of a socket: how envelopes
// are turned into kernel messages and back. Framers may keep per socket state
// and are only called with the socket's lock held.
type IFramer interface {
	// GetName returns the name of the socket type (e.g., "seqpacket", "stream")
	GetName() string

	// SocketType returns the kernel socket type (e.g., unix.SOCK_STREAM)
	SocketType() int

	// WriteMessage sends one envelope over the socket
	WriteMessage(s *Socket, e *common.Envelope) transport.Status

	// ReadMessages reads all envelopes that are available without blocking
	ReadMessages(s *Socket) (transport.Status, []*common.Envelope)
}

// IFramerCloser is implemented by framers that hold resources (e.g. received
// handles of an incomplete frame) which must be released with the socket.
// Close is called once, with the socket's lock held, before the handle is closed.
type IFramerCloser interface {
	Close(s *Socket)
}

// -----------------------------------------------------------
// Socket
// -----------------------------------------------------------

// Socket implements the state and the socket type independent operations of
// a local socket: creation, configuration, connecting, closing and the raw
// send and receive calls framers build on.
type Socket struct {
	mu     sync.Mutex
	handle int
	framer IFramer

	// Buffer is the receive buffer (MaxBufferSize bytes)
	Buffer []byte
	// ControlBuffer receives the ancillary data of one message
	ControlBuffer []byte
}

// NewSocket creates a socket for the given framer. If handle is negative a new
// kernel socket of the framer's type is created, otherwise the socket adopts
// handle. Either way the handle is made non-blocking and its kernel buffers
// are limited to MaxBufferSize. Failing to create or configure the socket is fatal.
func NewSocket(framer IFramer, handle int) *Socket {
	if handle < 0 {
		fd, err := unix.Socket(unix.AF_UNIX, framer.SocketType(), 0)
		if err != nil {
			Logger.Panicf("could not create %s socket: %v", framer.GetName(), err)
		}
		handle = fd
	}

	if err := ConfigureHandle(handle); err != nil {
		Logger.Panicf("could not configure %s socket %d: %v", framer.GetName(), handle, err)
	}

	return &Socket{
		handle:        handle,
		framer:        framer,
		Buffer:        make([]byte, MaxBufferSize),
		ControlBuffer: make([]byte, unix.CmsgSpace(4*common.MaxAttachmentCount)),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ISocket)
// --------------------------------------------------------------------------

func (s *Socket) Handle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Socket) Connect(endpoint string) bool {
	if len(endpoint) > MaxEndpointLength {
		Logger.Panicf("endpoint %q is longer than %d bytes", endpoint, MaxEndpointLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle < 0 {
		return false
	}

	for {
		err := unix.Connect(s.handle, &unix.SockaddrUnix{Name: endpoint})
		switch err {
		case nil, unix.EISCONN:
			return true
		case unix.EINTR:
			continue
		default:
			Logger.Debugf("could not connect %s socket %d to %s: %v", s.framer.GetName(), s.handle, endpoint, err)
			return false
		}
	}
}

func (s *Socket) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle < 0 {
		return false
	}
	if closer, ok := s.framer.(IFramerCloser); ok {
		closer.Close(s)
	}
	if err := unix.Close(s.handle); err != nil {
		Logger.Warningf("error closing %s socket %d: %v", s.framer.GetName(), s.handle, err)
	}
	s.handle = -1
	return true
}

func (s *Socket) WriteMessage(e *common.Envelope) transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle < 0 {
		return transport.StatusPermanentFailure
	}
	return s.framer.WriteMessage(s, e)
}

func (s *Socket) ReadMessages() (transport.Status, []*common.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle < 0 {
		return transport.StatusPermanentFailure, nil
	}
	return s.framer.ReadMessages(s)
}

// --------------------------------------------------------------------------
// Raw operations (used by framers, lock held)
// --------------------------------------------------------------------------

// Send writes buffers and attachments with a single sendmsg call. If the
// kernel buffer is full it waits until the socket is writable and retries.
// It returns the number of bytes the kernel accepted.
func (s *Socket) Send(buffers [][]byte, attachments []common.Attachment) (int, error) {
	var oob []byte
	if len(attachments) > 0 {
		handles := make([]int, len(attachments))
		for i, a := range attachments {
			handles[i] = a.Handle()
		}
		oob = unix.UnixRights(handles...)
	}

	for {
		n, err := unix.SendmsgBuffers(s.handle, buffers, oob, nil, 0)
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if err := waitWritable(s.handle); err != nil {
				return 0, err
			}
			continue
		}
		return n, err
	}
}

// Receive reads one message into Buffer[offset:] and decodes the handles
// passed along with it. Truncated ancillary data is fatal since the passed
// handles would be lost.
func (s *Socket) Receive(offset int) (int, []common.Attachment, error) {
	for {
		n, oobn, flags, _, err := unix.Recvmsg(s.handle, s.Buffer[offset:], s.ControlBuffer, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		if flags&unix.MSG_CTRUNC != 0 {
			Logger.Panicf("ancillary data truncated on %s socket %d", s.framer.GetName(), s.handle)
		}

		attachments, err := parseAttachments(s.ControlBuffer[:oobn])
		if err != nil {
			Logger.Panicf("invalid ancillary data on %s socket %d: %v", s.framer.GetName(), s.handle, err)
		}
		return n, attachments, nil
	}
}
