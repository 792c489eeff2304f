package server

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
	sys "golang.org/x/sys/unix"
)

// IMessageHandler answers the messages a Service receives. Handle is called on
// the service's loop thread. The attachments are closed after Handle returns,
// handlers that keep one must duplicate it. A nil response sends no reply.
type IMessageHandler interface {
	Handle(msg *common.Message, attachments []common.Attachment) *common.Message
}

// NewEchoHandler creates a handler that answers pings with pongs and echoes
// the body of every other message
func NewEchoHandler() IMessageHandler {
	return &echoHandler{}
}

type echoHandler struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IMessageHandler)
// --------------------------------------------------------------------------

func (h *echoHandler) Handle(msg *common.Message, attachments []common.Attachment) *common.Message {
	switch msg.MsgType {
	case common.MsgTPing:
		return common.NewPongMessage(msg)

	case common.MsgTText, common.MsgTCustom:
		resp := common.NewSuccessResponse(msg.Seq)
		resp.Body = msg.Body
		if len(attachments) > 0 {
			resp.Meta = []byte(describeAttachments(attachments))
		}
		return resp

	case common.MsgTSuccess, common.MsgTError, common.MsgTPong:
		// replies are never answered
		return nil

	default:
		return common.NewErrorResponse(msg.Seq, fmt.Sprintf("unsupported message type %s", msg.MsgType))
	}
}

// NewAckHandler creates a handler that logs every message and acknowledges it
// without echoing the body. Pings are still answered with pongs.
func NewAckHandler() IMessageHandler {
	return &ackHandler{}
}

type ackHandler struct{}

func (h *ackHandler) Handle(msg *common.Message, attachments []common.Attachment) *common.Message {
	switch msg.MsgType {
	case common.MsgTPing:
		return common.NewPongMessage(msg)
	case common.MsgTSuccess, common.MsgTError, common.MsgTPong:
		return nil
	}

	if len(attachments) > 0 {
		Logger.Infof("received %s #%d: %q (%s)", msg.MsgType, msg.Seq, msg.Body, describeAttachments(attachments))
	} else {
		Logger.Infof("received %s #%d: %q", msg.MsgType, msg.Seq, msg.Body)
	}
	return common.NewSuccessResponse(msg.Seq)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// describeAttachments reports the number and total size of attached files
func describeAttachments(attachments []common.Attachment) string {
	var total int64
	for _, a := range attachments {
		var stat sys.Stat_t
		if err := sys.Fstat(a.Handle(), &stat); err == nil {
			total += stat.Size
		}
	}
	return fmt.Sprintf("attachments=%d bytes=%d", len(attachments), total)
}
