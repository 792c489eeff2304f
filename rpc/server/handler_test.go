package server

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestEchoHandler(t *testing.T) {
	h := NewEchoHandler()

	pong := h.Handle(common.NewPingMessage(3, []byte("pad")), nil)
	require.Equal(t, common.MsgTPong, pong.MsgType)
	require.Equal(t, uint64(3), pong.Seq)
	require.Equal(t, []byte("pad"), pong.Body)

	echo := h.Handle(common.NewTextMessage(4, "hello"), nil)
	require.Equal(t, common.MsgTSuccess, echo.MsgType)
	require.Equal(t, []byte("hello"), echo.Body)
	require.Nil(t, echo.Meta)

	require.Nil(t, h.Handle(common.NewSuccessResponse(5), nil), "replies must not be answered")

	unknown := h.Handle(&common.Message{MsgType: common.MsgTUnknown, Seq: 6}, nil)
	require.Equal(t, common.MsgTError, unknown.MsgType)
	require.NotEmpty(t, unknown.Err)
}

func TestEchoHandlerDescribesAttachments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attachment")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	resp := NewEchoHandler().Handle(common.NewTextMessage(1, "file"), []common.Attachment{common.NewFileAttachment(f)})
	require.Equal(t, "attachments=1 bytes=10", string(resp.Meta))
}

func TestAckHandler(t *testing.T) {
	h := NewAckHandler()

	ack := h.Handle(common.NewTextMessage(8, "hello"), nil)
	require.Equal(t, common.MsgTSuccess, ack.MsgType)
	require.Equal(t, uint64(8), ack.Seq)
	require.Nil(t, ack.Body)

	require.Equal(t, common.MsgTPong, h.Handle(common.NewPingMessage(9, nil), nil).MsgType)
}
