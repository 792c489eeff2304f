package unix

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	sys "golang.org/x/sys/unix"
	"io/fs"
	"os"
	"sync"
)

var (
	detectOnce sync.Once
	detected   common.SocketType
)

// --------------------------------------------------------------------------
// Socket Factory Methods
// --------------------------------------------------------------------------

// SupportedSocketType reports the socket type auto selects on this host:
// seqpacket if the kernel supports local seqpacket sockets, stream otherwise.
// The kernel is probed once.
func SupportedSocketType() common.SocketType {
	detectOnce.Do(func() {
		fd, err := sys.Socket(sys.AF_UNIX, sys.SOCK_SEQPACKET, 0)
		if err != nil {
			base.Logger.Infof("seqpacket sockets unavailable (%v), using stream sockets", err)
			detected = common.SocketTypeStream
			return
		}
		_ = sys.Close(fd)
		detected = common.SocketTypeSeqPacket
	})
	return detected
}

// Resolve replaces SocketTypeAuto with the supported socket type
func Resolve(socketType common.SocketType) common.SocketType {
	if socketType == common.SocketTypeAuto || socketType == "" {
		return SupportedSocketType()
	}
	return socketType
}

// NewSocket creates a socket of the given type. A negative handle creates a
// new kernel socket, otherwise the handle is adopted.
func NewSocket(socketType common.SocketType, handle int) transport.ISocket {
	if Resolve(socketType) == common.SocketTypeSeqPacket {
		return NewSeqPacketSocket(handle)
	}
	return NewStreamSocket(handle)
}

// Create creates a socket of the supported type
func Create(handle int) transport.ISocket {
	return NewSocket(common.SocketTypeAuto, handle)
}

// CreatePair creates two connected sockets of the given type
func CreatePair(socketType common.SocketType) (transport.ISocket, transport.ISocket, error) {
	socketType = Resolve(socketType)

	fds, err := sys.Socketpair(sys.AF_UNIX, kernelType(socketType), 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair failed: %w", err)
	}
	return NewSocket(socketType, fds[0]), NewSocket(socketType, fds[1]), nil
}

// --------------------------------------------------------------------------
// Listening Sockets
// --------------------------------------------------------------------------

// Listen creates a non-blocking listening socket bound to endpoint. A stale
// filesystem entry at endpoint is removed first.
func Listen(endpoint string, socketType common.SocketType, backlog int) (int, error) {
	if len(endpoint) > base.MaxEndpointLength {
		return -1, fmt.Errorf("endpoint %q is longer than %d bytes", endpoint, base.MaxEndpointLength)
	}

	// Remove existing socket file if it exists
	if err := os.Remove(endpoint); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return -1, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	fd, err := sys.Socket(sys.AF_UNIX, kernelType(Resolve(socketType)), 0)
	if err != nil {
		return -1, fmt.Errorf("failed to create socket: %w", err)
	}
	sys.CloseOnExec(fd)

	if err := sys.Bind(fd, &sys.SockaddrUnix{Name: endpoint}); err != nil {
		_ = sys.Close(fd)
		return -1, fmt.Errorf("failed to bind %s: %w", endpoint, err)
	}
	if err := sys.Listen(fd, backlog); err != nil {
		_ = sys.Close(fd)
		_ = os.Remove(endpoint)
		return -1, fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}
	if err := sys.SetNonblock(fd, true); err != nil {
		_ = sys.Close(fd)
		_ = os.Remove(endpoint)
		return -1, fmt.Errorf("failed to make listener non-blocking: %w", err)
	}

	return fd, nil
}

// Accept accepts one pending connection. It returns sys.EAGAIN if no
// connection is pending.
func Accept(handle int) (int, error) {
	for {
		fd, _, err := sys.Accept(handle)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return -1, err
		}
		sys.CloseOnExec(fd)
		return fd, nil
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// kernelType maps a resolved socket type to the kernel socket type
func kernelType(socketType common.SocketType) int {
	if socketType == common.SocketTypeSeqPacket {
		return sys.SOCK_SEQPACKET
	}
	return sys.SOCK_STREAM
}
