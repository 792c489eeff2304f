package unix

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	sys "golang.org/x/sys/unix"
)

// padding is sent in place of an empty envelope. A zero length record cannot
// be told apart from the peer shutting down.
var padding = []byte{0}

// seqPacketFramer implements the IFramer interface for packet preserving
// sockets: every envelope is one kernel record, so no framing is needed.
type seqPacketFramer struct{}

// NewSeqPacketSocket creates a packet preserving socket. A negative handle
// creates a new kernel socket, otherwise the handle is adopted.
func NewSeqPacketSocket(handle int) transport.ISocket {
	return base.NewSocket(&seqPacketFramer{}, handle)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IFramer)
// --------------------------------------------------------------------------

func (f *seqPacketFramer) GetName() string {
	return string(common.SocketTypeSeqPacket)
}

func (f *seqPacketFramer) SocketType() int {
	return sys.SOCK_SEQPACKET
}

func (f *seqPacketFramer) WriteMessage(s *base.Socket, e *common.Envelope) transport.Status {
	data := e.Data()
	if len(data) > base.MaxBufferSize {
		base.Logger.Debugf("envelope of %d bytes exceeds the %d byte limit", len(data), base.MaxBufferSize)
		return transport.StatusTemporaryFailure
	}
	if len(data) == 0 {
		data = padding
	}

	n, err := s.Send([][]byte{data}, e.Attachments())
	if err != nil {
		return base.StatusFromError(err)
	}
	if n != len(data) {
		return transport.StatusTemporaryFailure
	}
	return transport.StatusSuccess
}

func (f *seqPacketFramer) ReadMessages(s *base.Socket) (transport.Status, []*common.Envelope) {
	var envelopes []*common.Envelope

	for {
		n, attachments, err := s.Receive(0)
		if err == sys.EAGAIN {
			return transport.StatusSuccess, envelopes
		}
		if err != nil {
			base.Logger.Debugf("receive on seqpacket socket failed: %v", err)
			return base.StatusFromError(err), envelopes
		}
		if n == 0 {
			return transport.StatusPermanentFailure, envelopes
		}

		e := common.NewEnvelopeFromBytes(s.Buffer[:n])
		attach(e, attachments)
		envelopes = append(envelopes, e)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// attach adds received handles to an envelope. Handles beyond the attachment
// limit cannot be delivered and are closed.
func attach(e *common.Envelope, attachments []common.Attachment) {
	for _, a := range attachments {
		if len(e.Attachments()) >= common.MaxAttachmentCount {
			base.Logger.Errorf("dropping received handle %d: envelope already carries %d attachments", a.Handle(), common.MaxAttachmentCount)
			_ = sys.Close(a.Handle())
			continue
		}
		e.AddAttachment(a)
	}
}
