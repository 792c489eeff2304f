package channel

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/lib/looper"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	"github.com/ValentinKolb/dLoop/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	sys "golang.org/x/sys/unix"
	"sync"
)

var Logger = logger.GetLogger("channel")

// MessageReceivedCallback is invoked on the loop's thread once per received envelope
type MessageReceivedCallback func(e *common.Envelope)

// TerminationCallback is invoked once when the channel's socket was closed
type TerminationCallback func()

// Channel is a message channel to one peer. It is either created for a named
// endpoint and connected with TryConnect, or created from an already
// connected socket. Received envelopes are delivered through the message
// callback while the channel is scheduled in a Looper.
type Channel struct {
	mu          sync.Mutex
	name        string
	socket      transport.ISocket
	connected   bool
	terminated  bool
	source      *looper.Source
	scheduledIn *looper.Looper
	onMessage   MessageReceivedCallback
	onTerminate TerminationCallback
}

// --------------------------------------------------------------------------
// Factory Functions
// --------------------------------------------------------------------------

// New creates an unconnected channel for endpoint using the supported socket type
func New(endpoint string) *Channel {
	return NewOfType(endpoint, common.SocketTypeAuto)
}

// NewOfType creates an unconnected channel for endpoint using the given socket type.
// Endpoints longer than 96 bytes are a programming error and fatal.
func NewOfType(endpoint string, socketType common.SocketType) *Channel {
	if len(endpoint) > base.MaxEndpointLength {
		Logger.Panicf("endpoint %q is longer than %d bytes", endpoint, base.MaxEndpointLength)
	}
	return &Channel{
		name:   endpoint,
		socket: unix.NewSocket(socketType, -1),
	}
}

// NewFromHandle creates a connected channel that adopts an accepted or paired socket handle
func NewFromHandle(handle int, socketType common.SocketType) *Channel {
	return NewFromSocket(unix.NewSocket(socketType, handle))
}

// NewFromSocket creates a connected channel over a connected socket
func NewFromSocket(socket transport.ISocket) *Channel {
	return &Channel{
		socket:    socket,
		connected: true,
	}
}

// NewConnectedPair creates two channels connected to each other
func NewConnectedPair(socketType common.SocketType) (*Channel, *Channel, error) {
	a, b, err := unix.CreatePair(socketType)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create connected channels: %w", err)
	}
	return NewFromSocket(a), NewFromSocket(b), nil
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// Name returns the endpoint of the channel (empty for channels created connected)
func (c *Channel) Name() string {
	return c.name
}

// IsConnected reports whether the channel is connected to a peer
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// IsReady reports whether the channel still owns an open socket
func (c *Channel) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.terminated
}

// TryConnect connects an unconnected channel to its endpoint. It returns true
// if the channel is (already) connected.
func (c *Channel) TryConnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return true
	}
	if c.terminated || c.name == "" {
		return false
	}
	if !c.socket.Connect(c.name) {
		return false
	}

	Logger.Debugf("connected to %s", c.name)
	c.connected = true
	return true
}

// Terminate deregisters the channel from its looper and closes its socket.
// The termination callback runs if a socket was closed. The channel is neither
// ready nor connected afterwards.
func (c *Channel) Terminate() {
	c.mu.Lock()
	l, source := c.scheduledIn, c.source
	c.scheduledIn = nil
	c.connected = false
	c.terminated = true
	callback := c.onTerminate
	c.mu.Unlock()

	// deregister before the handle number can be reused
	if l != nil {
		l.RemoveSource(source)
	}

	if !c.socket.Close() {
		return
	}

	terminations.Inc()
	Logger.Debugf("channel %s terminated", c.describe())
	if callback != nil {
		callback()
	}
}

// --------------------------------------------------------------------------
// Messages
// --------------------------------------------------------------------------

// SetMessageReceivedCallback sets the callback for received envelopes
func (c *Channel) SetMessageReceivedCallback(callback MessageReceivedCallback) {
	c.mu.Lock()
	c.onMessage = callback
	c.mu.Unlock()
}

// SetTerminationCallback sets the callback invoked when the channel terminates
func (c *Channel) SetTerminationCallback(callback TerminationCallback) {
	c.mu.Lock()
	c.onTerminate = callback
	c.mu.Unlock()
}

// SendMessage sends one envelope. Envelopes larger than the transport's buffer
// are a programming error and fatal. A permanent transport failure terminates
// the channel. SendMessage returns true only if the envelope was sent.
// On seqpacket sockets an empty envelope arrives as the single byte 0.
func (c *Channel) SendMessage(e *common.Envelope) bool {
	if e.Size() > base.MaxBufferSize {
		Logger.Panicf("envelope of %d bytes exceeds the %d byte limit", e.Size(), base.MaxBufferSize)
	}

	if !c.IsConnected() {
		return false
	}

	switch status := c.socket.WriteMessage(e); status {
	case transport.StatusSuccess:
		messagesSent.Inc()
		attachmentsSent.Add(len(e.Attachments()))
		return true
	case transport.StatusPermanentFailure:
		sendPermanentFailures.Inc()
		Logger.Debugf("channel %s: peer is gone", c.describe())
		c.Terminate()
		return false
	default:
		sendTemporaryFailures.Inc()
		Logger.Debugf("channel %s: send failed (%s)", c.describe(), status)
		return false
	}
}

// --------------------------------------------------------------------------
// Scheduling
// --------------------------------------------------------------------------

// ScheduleInLooper registers the channel with l so received envelopes are
// dispatched on l's thread. It is a no-op if l is nil or the channel is not
// connected. A channel is scheduled in at most one looper at a time.
func (c *Channel) ScheduleInLooper(l *looper.Looper) {
	if l == nil {
		return
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	if c.scheduledIn != nil && c.scheduledIn != l {
		c.mu.Unlock()
		Logger.Panicf("channel %s is already scheduled in another looper", c.describe())
	}
	if c.source == nil {
		c.source = looper.NewSource(c.allocateHandles, nil, c.onReadable, nil)
	}
	c.scheduledIn = l
	source := c.source
	c.mu.Unlock()

	l.AddSource(source)
}

// UnscheduleFromLooper deregisters the channel from l. It is a no-op if l is
// nil or the channel is not scheduled in l.
func (c *Channel) UnscheduleFromLooper(l *looper.Looper) {
	if l == nil {
		return
	}

	c.mu.Lock()
	if c.source == nil || c.scheduledIn != l {
		c.mu.Unlock()
		return
	}
	c.scheduledIn = nil
	source := c.source
	c.mu.Unlock()

	l.RemoveSource(source)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// allocateHandles exposes the socket handle as both handles of the channel's
// source. The channel owns the handle, so the source has no deallocator.
func (c *Channel) allocateHandles() (looper.Handles, error) {
	h := c.socket.Handle()
	return looper.Handles{Read: h, Write: h}, nil
}

// onReadable is the read handler of the channel's source
func (c *Channel) onReadable(_ int) {
	status, envelopes := c.socket.ReadMessages()

	c.mu.Lock()
	callback := c.onMessage
	c.mu.Unlock()

	for _, e := range envelopes {
		messagesReceived.Inc()
		attachmentsReceived.Add(len(e.Attachments()))

		if callback != nil {
			callback(e)
			continue
		}

		// nobody takes ownership of received handles
		for _, a := range e.Attachments() {
			_ = sys.Close(a.Handle())
		}
	}

	switch status {
	case transport.StatusPermanentFailure:
		c.Terminate()
	case transport.StatusTemporaryFailure:
		readTemporaryFailures.Inc()
	}
}

// describe returns a name for log messages
func (c *Channel) describe() string {
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("%p", c)
}
