package base

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"golang.org/x/sys/unix"
)

// FrameHeaderSize is the size of the length prefix of a stream frame
const FrameHeaderSize = 2

// MaxFramePayload is the largest payload a stream frame can carry
const MaxFramePayload = MaxBufferSize - FrameHeaderSize

// PutFrameHeader writes the frame header for a payload of size bytes:
// - 2 bytes: payload length (uint16, host byte order)
func PutFrameHeader(header []byte, size int) {
	binary.NativeEndian.PutUint16(header[:FrameHeaderSize], uint16(size))
}

// FrameLength reads the payload length from a frame header
func FrameLength(header []byte) int {
	return int(binary.NativeEndian.Uint16(header[:FrameHeaderSize]))
}

// ConfigureHandle limits the kernel buffers of a socket to MaxBufferSize and
// makes it non-blocking and close-on-exec
func ConfigureHandle(handle int) error {
	if err := unix.SetsockoptInt(handle, unix.SOL_SOCKET, unix.SO_SNDBUF, MaxBufferSize); err != nil {
		return fmt.Errorf("setting SO_SNDBUF: %w", err)
	}
	if err := unix.SetsockoptInt(handle, unix.SOL_SOCKET, unix.SO_RCVBUF, MaxBufferSize); err != nil {
		return fmt.Errorf("setting SO_RCVBUF: %w", err)
	}
	if err := unix.SetNonblock(handle, true); err != nil {
		return fmt.Errorf("setting O_NONBLOCK: %w", err)
	}
	unix.CloseOnExec(handle)
	return nil
}

// StatusFromError maps a failed send or receive to a transport status:
// a vanished peer is a permanent failure, everything else is temporary.
func StatusFromError(err error) transport.Status {
	switch err {
	case nil:
		return transport.StatusSuccess
	case unix.EPIPE, unix.ECONNRESET:
		return transport.StatusPermanentFailure
	default:
		return transport.StatusTemporaryFailure
	}
}

// SkipBytes returns buffers without their first n bytes
func SkipBytes(buffers [][]byte, n int) [][]byte {
	for len(buffers) > 0 && n >= len(buffers[0]) {
		n -= len(buffers[0])
		buffers = buffers[1:]
	}
	if len(buffers) > 0 && n > 0 {
		rest := make([][]byte, len(buffers))
		copy(rest, buffers)
		rest[0] = rest[0][n:]
		return rest
	}
	return buffers
}

// TotalLength returns the combined length of buffers
func TotalLength(buffers [][]byte) int {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	return total
}

// waitWritable blocks until the socket can take more data (or reports an
// error, which the following send then returns)
func waitWritable(handle int) error {
	fds := []unix.PollFd{{Fd: int32(handle), Events: unix.POLLOUT}}
	for {
		n, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n != 1 {
			Logger.Panicf("poll returned %d ready handles for one socket", n)
		}
		return nil
	}
}

// parseAttachments decodes the SCM_RIGHTS messages of a control buffer.
// Received handles are marked close-on-exec.
func parseAttachments(oob []byte) ([]common.Attachment, error) {
	if len(oob) == 0 {
		return nil, nil
	}

	messages, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}

	var attachments []common.Attachment
	for i := range messages {
		if messages[i].Header.Level != unix.SOL_SOCKET || messages[i].Header.Type != unix.SCM_RIGHTS {
			return nil, fmt.Errorf("unexpected control message (level %d, type %d)", messages[i].Header.Level, messages[i].Header.Type)
		}
		handles, err := unix.ParseUnixRights(&messages[i])
		if err != nil {
			return nil, err
		}
		for _, h := range handles {
			unix.CloseOnExec(h)
			attachments = append(attachments, common.NewAttachment(h))
		}
	}
	return attachments, nil
}
