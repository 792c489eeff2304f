package unix

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	sys "golang.org/x/sys/unix"
)

// streamFramer implements the IFramer interface for byte stream sockets.
// Every envelope is sent as one frame:
// - 2 bytes: payload length (uint16, host byte order)
// - N bytes: payload
//
// Bytes of an incomplete frame are kept at the start of the socket's receive
// buffer until the rest arrives.
type streamFramer struct {
	// number of bytes at the start of the receive buffer that belong to an incomplete frame
	unprocessed int
	// received handles whose frame is not complete yet
	pending []common.Attachment
}

// NewStreamSocket creates a byte stream socket. A negative handle creates a
// new kernel socket, otherwise the handle is adopted.
func NewStreamSocket(handle int) transport.ISocket {
	return base.NewSocket(&streamFramer{}, handle)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IFramer)
// --------------------------------------------------------------------------

func (f *streamFramer) GetName() string {
	return string(common.SocketTypeStream)
}

func (f *streamFramer) SocketType() int {
	return sys.SOCK_STREAM
}

func (f *streamFramer) WriteMessage(s *base.Socket, e *common.Envelope) transport.Status {
	data := e.Data()
	if base.FrameHeaderSize+len(data) > base.MaxBufferSize {
		base.Logger.Debugf("envelope of %d bytes exceeds the %d byte frame limit", len(data), base.MaxFramePayload)
		return transport.StatusTemporaryFailure
	}

	header := make([]byte, base.FrameHeaderSize)
	base.PutFrameHeader(header, len(data))
	buffers := [][]byte{header, data}
	total := base.TotalLength(buffers)

	n, err := s.Send(buffers, e.Attachments())
	if err != nil {
		return base.StatusFromError(err)
	}

	// the kernel took part of the frame: the rest must follow or the stream is torn
	for n < total {
		if n == 0 {
			return transport.StatusTemporaryFailure
		}
		written, err := s.Send(base.SkipBytes(buffers, n), nil)
		if err != nil {
			return base.StatusFromError(err)
		}
		if written == 0 {
			return transport.StatusTemporaryFailure
		}
		n += written
	}

	if n != total {
		return transport.StatusTemporaryFailure
	}
	return transport.StatusSuccess
}

func (f *streamFramer) ReadMessages(s *base.Socket) (transport.Status, []*common.Envelope) {
	if f.unprocessed >= base.MaxBufferSize {
		base.Logger.Panicf("stream receive buffer holds %d unprocessed bytes", f.unprocessed)
	}

	start := f.unprocessed
	n, attachments, err := s.Receive(start)
	if err == sys.EAGAIN {
		return transport.StatusSuccess, nil
	}
	if err != nil {
		base.Logger.Debugf("receive on stream socket failed: %v", err)
		return base.StatusFromError(err), nil
	}
	if n == 0 {
		// the frame these handles belong to can never complete
		f.closePending()
		f.unprocessed = 0
		return transport.StatusPermanentFailure, nil
	}

	f.unprocessed += n
	return f.processReadBuffer(s.Buffer, start, attachments)
}

// Close releases the handles of an incomplete frame (docu see base.IFramerCloser)
func (f *streamFramer) Close(_ *base.Socket) {
	f.closePending()
	f.unprocessed = 0
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// processReadBuffer splits the first f.unprocessed bytes of buf into frames.
// newDataStart is the offset at which the bytes of the latest receive begin,
// attachments are the handles that receive delivered.
//
// The kernel delivers passed handles with the first byte of the send that
// carried them and ends a receive after that send's bytes, so handles belong
// to the last frame that begins inside the newly received bytes. If that
// frame is still incomplete the handles stay pending until it completes. If
// no frame begins in the new bytes they go to the first frame completed.
func (f *streamFramer) processReadBuffer(buf []byte, newDataStart int, attachments []common.Attachment) (transport.Status, []*common.Envelope) {
	var envelopes []*common.Envelope
	lastNew := -1
	offset := 0

	for f.unprocessed-offset >= base.FrameHeaderSize {
		length := base.FrameLength(buf[offset:])
		if length > base.MaxFramePayload {
			base.Logger.Errorf("corrupted stream: frame of %d bytes exceeds the %d byte limit", length, base.MaxFramePayload)
			f.unprocessed = 0
			f.closePending()
			closeAll(attachments)
			return transport.StatusPermanentFailure, envelopes
		}
		if f.unprocessed-offset-base.FrameHeaderSize < length {
			break
		}

		payload := buf[offset+base.FrameHeaderSize : offset+base.FrameHeaderSize+length]
		envelopes = append(envelopes, common.NewEnvelopeFromBytes(payload))
		if offset >= newDataStart {
			lastNew = len(envelopes) - 1
		}
		offset += base.FrameHeaderSize + length
	}

	partialStartsInNewData := offset < f.unprocessed && offset >= newDataStart

	// handles of earlier receives belong to the frame that was incomplete then
	if len(f.pending) > 0 && len(envelopes) > 0 {
		attach(envelopes[0], f.pending)
		f.pending = nil
	}

	if len(attachments) > 0 {
		switch {
		case partialStartsInNewData:
			f.pending = append(f.pending, attachments...)
		case lastNew >= 0:
			attach(envelopes[lastNew], attachments)
		case len(envelopes) > 0:
			attach(envelopes[0], attachments)
		default:
			f.pending = append(f.pending, attachments...)
		}
	}

	// move the bytes of the incomplete frame to the start of the buffer
	copy(buf, buf[offset:f.unprocessed])
	f.unprocessed -= offset

	return transport.StatusSuccess, envelopes
}

// closePending closes handles that can no longer be delivered
func (f *streamFramer) closePending() {
	closeAll(f.pending)
	f.pending = nil
}

// closeAll closes the given handles
func closeAll(attachments []common.Attachment) {
	for _, a := range attachments {
		_ = sys.Close(a.Handle())
	}
}
