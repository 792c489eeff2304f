package server

import (
	"errors"
	"github.com/ValentinKolb/dLoop/lib/looper"
	"github.com/ValentinKolb/dLoop/rpc/channel"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	"github.com/ValentinKolb/dLoop/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	sys "golang.org/x/sys/unix"
	"io/fs"
	"os"
	"sync"
)

var Logger = logger.GetLogger("server")

// DefaultBacklog is the listen backlog of NewListener
const DefaultBacklog = 1

// ChannelAvailabilityCallback receives every accepted connection as a
// connected channel. The callback owns the channel.
type ChannelAvailabilityCallback func(c *channel.Channel)

// Listener accepts connections on a named endpoint
type Listener struct {
	mu         sync.Mutex
	endpoint   string
	socketType common.SocketType
	handle     int
	source     *looper.Source
	onChannel  ChannelAvailabilityCallback
}

// --------------------------------------------------------------------------
// Factory Functions
// --------------------------------------------------------------------------

// NewListener listens on endpoint with the supported socket type and the default backlog
func NewListener(endpoint string) *Listener {
	return NewListenerOfType(endpoint, common.SocketTypeAuto, DefaultBacklog)
}

// NewListenerOfType listens on endpoint. Endpoints longer than 96 bytes are a
// programming error and fatal. If the endpoint cannot be bound the listener is
// not listening.
func NewListenerOfType(endpoint string, socketType common.SocketType, backlog int) *Listener {
	if len(endpoint) > base.MaxEndpointLength {
		Logger.Panicf("endpoint %q is longer than %d bytes", endpoint, base.MaxEndpointLength)
	}

	l := &Listener{
		endpoint:   endpoint,
		socketType: unix.Resolve(socketType),
		handle:     -1,
	}

	handle, err := unix.Listen(endpoint, l.socketType, backlog)
	if err != nil {
		Logger.Errorf("could not listen on %s: %v", endpoint, err)
		return l
	}

	l.handle = handle
	Logger.Infof("listening on %s (%s, backlog %d)", endpoint, l.socketType, backlog)
	return l
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Endpoint returns the name the listener is bound to
func (l *Listener) Endpoint() string {
	return l.endpoint
}

// SocketType returns the (resolved) socket type of accepted channels
func (l *Listener) SocketType() common.SocketType {
	return l.socketType
}

// IsListening reports whether the listener owns a listening socket
func (l *Listener) IsListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle >= 0
}

// SetChannelAvailabilityCallback sets the receiver of accepted connections.
// Without a callback accepted connections are closed immediately.
func (l *Listener) SetChannelAvailabilityCallback(callback ChannelAvailabilityCallback) {
	l.mu.Lock()
	l.onChannel = callback
	l.mu.Unlock()
}

// ClientConnectionsSource returns the source to schedule in a looper so that
// pending connections are accepted. The source is created on first use.
func (l *Listener) ClientConnectionsSource() *looper.Source {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source == nil {
		l.source = looper.NewSource(l.allocateHandles, nil, l.onAcceptable, nil)
	}
	return l.source
}

// Close removes the endpoint from the filesystem and closes the listening
// socket. The connections source must be removed from its looper first.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle < 0 {
		return
	}

	if err := os.Remove(l.endpoint); err != nil && !errors.Is(err, fs.ErrNotExist) {
		Logger.Warningf("could not remove %s: %v", l.endpoint, err)
	}
	if err := sys.Close(l.handle); err != nil {
		Logger.Warningf("error closing listener %s: %v", l.endpoint, err)
	}
	l.handle = -1
	Logger.Infof("stopped listening on %s", l.endpoint)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// allocateHandles exposes the listening socket as the read handle of the
// connections source. The listener owns the handle.
func (l *Listener) allocateHandles() (looper.Handles, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return looper.Handles{Read: l.handle, Write: -1}, nil
}

// onAcceptable accepts one pending connection
func (l *Listener) onAcceptable(handle int) {
	fd, err := unix.Accept(handle)
	switch {
	case err == nil:
	case errors.Is(err, sys.EAGAIN), errors.Is(err, sys.ECONNABORTED):
		// the connection went away before it was accepted
		return
	default:
		Logger.Panicf("could not accept connection on %s: %v", l.endpoint, err)
	}

	l.mu.Lock()
	callback := l.onChannel
	l.mu.Unlock()

	if callback == nil {
		rejectedConnections.Inc()
		Logger.Debugf("no channel callback, closing connection on %s", l.endpoint)
		_ = sys.Close(fd)
		return
	}

	acceptedConnections.Inc()
	Logger.Debugf("accepted connection on %s", l.endpoint)
	callback(channel.NewFromHandle(fd, l.socketType))
}
