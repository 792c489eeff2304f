package unix

import (
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"
	"os"
	"path/filepath"
	"testing"
)

// testSocketTypes returns the socket types available on this host
func testSocketTypes() []common.SocketType {
	types := []common.SocketType{common.SocketTypeStream}
	if SupportedSocketType() == common.SocketTypeSeqPacket {
		types = append(types, common.SocketTypeSeqPacket)
	}
	return types
}

// newPair creates a connected socket pair that is closed when the test ends
func newPair(t *testing.T, socketType common.SocketType) (transport.ISocket, transport.ISocket) {
	t.Helper()
	a, b, err := CreatePair(socketType)
	if err != nil {
		t.Fatalf("Failed to create %s pair: %v", socketType, err)
	}
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// testEndpoint returns a unique, short endpoint path
func testEndpoint() string {
	return filepath.Join(os.TempDir(), "dloop-"+uuid.NewString()[:8]+".sock")
}

func TestPairRoundTrip(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			a, b := newPair(t, socketType)

			for i := 0; i < 3; i++ {
				e := common.NewEnvelope()
				common.Encode(e, uint32(i))
				e.EncodeString("payload")
				require.Equal(t, transport.StatusSuccess, a.WriteMessage(e))
			}

			status, envelopes := b.ReadMessages()
			require.Equal(t, transport.StatusSuccess, status)
			require.Len(t, envelopes, 3)

			for i, e := range envelopes {
				var v uint32
				require.True(t, common.Decode(e, &v))
				require.Equal(t, uint32(i), v)
				s, ok := e.DecodeString()
				require.True(t, ok)
				require.Equal(t, "payload", s)
			}

			// nothing left to read
			status, envelopes = b.ReadMessages()
			require.Equal(t, transport.StatusSuccess, status)
			require.Empty(t, envelopes)
		})
	}
}

func TestOversizeEnvelopeIsTemporaryFailure(t *testing.T) {
	limits := map[common.SocketType]int{
		common.SocketTypeStream:    base.MaxFramePayload,
		common.SocketTypeSeqPacket: base.MaxBufferSize,
	}

	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			a, _ := newPair(t, socketType)
			limit := limits[socketType]

			tooLarge := common.NewEnvelopeFromBytes(make([]byte, limit+1))
			require.Equal(t, transport.StatusTemporaryFailure, a.WriteMessage(tooLarge))

			largest := common.NewEnvelopeFromBytes(make([]byte, limit))
			require.Equal(t, transport.StatusSuccess, a.WriteMessage(largest))
		})
	}
}

func TestPeerCloseIsPermanentFailure(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			a, b := newPair(t, socketType)

			require.True(t, a.Close())
			require.False(t, a.Close(), "closing twice must report false")
			require.Equal(t, -1, a.Handle())

			status, envelopes := b.ReadMessages()
			require.Equal(t, transport.StatusPermanentFailure, status)
			require.Empty(t, envelopes)

			e := common.NewEnvelopeFromBytes([]byte("lost"))
			require.Equal(t, transport.StatusPermanentFailure, b.WriteMessage(e))
			require.Equal(t, transport.StatusPermanentFailure, a.WriteMessage(e))
		})
	}
}

func TestMessagesBeforeCloseAreDelivered(t *testing.T) {
	if SupportedSocketType() != common.SocketTypeSeqPacket {
		t.Skip("seqpacket sockets not supported")
	}
	a, b := newPair(t, common.SocketTypeSeqPacket)

	require.Equal(t, transport.StatusSuccess, a.WriteMessage(common.NewEnvelopeFromBytes([]byte("last words"))))
	a.Close()

	status, envelopes := b.ReadMessages()
	require.Equal(t, transport.StatusPermanentFailure, status)
	require.Len(t, envelopes, 1)
	require.Equal(t, []byte("last words"), envelopes[0].Data())
}

func TestEmptyEnvelopeOnSeqPacket(t *testing.T) {
	if SupportedSocketType() != common.SocketTypeSeqPacket {
		t.Skip("seqpacket sockets not supported")
	}
	a, b := newPair(t, common.SocketTypeSeqPacket)

	require.Equal(t, transport.StatusSuccess, a.WriteMessage(common.NewEnvelope()))

	status, envelopes := b.ReadMessages()
	require.Equal(t, transport.StatusSuccess, status)
	require.Len(t, envelopes, 1)
	require.Equal(t, padding, envelopes[0].Data())
}

func TestAttachmentRoundTrip(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			a, b := newPair(t, socketType)

			var pipe [2]int
			require.NoError(t, sys.Pipe(pipe[:]))
			defer sys.Close(pipe[0])
			defer sys.Close(pipe[1])

			e := common.NewEnvelopeFromBytes([]byte("with handle"))
			e.AddAttachment(common.NewAttachment(pipe[1]))
			require.Equal(t, transport.StatusSuccess, a.WriteMessage(e))

			status, envelopes := b.ReadMessages()
			require.Equal(t, transport.StatusSuccess, status)
			require.Len(t, envelopes, 1)
			require.Len(t, envelopes[0].Attachments(), 1)

			// the received handle is a new descriptor for the pipe's write end
			received := envelopes[0].Attachments()[0].Handle()
			require.NotEqual(t, pipe[1], received)
			_, err := sys.Write(received, []byte("ok"))
			require.NoError(t, err)
			require.NoError(t, sys.Close(received))

			buf := make([]byte, 2)
			n, err := sys.Read(pipe[0], buf)
			require.NoError(t, err)
			require.Equal(t, "ok", string(buf[:n]))
		})
	}
}

func TestConnectToMissingEndpoint(t *testing.T) {
	socket := Create(-1)
	defer socket.Close()

	require.False(t, socket.Connect(testEndpoint()))
}

func TestConnectClosedSocket(t *testing.T) {
	socket := Create(-1)
	socket.Close()

	require.False(t, socket.Connect(testEndpoint()))
}

func TestListenAcceptConnect(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			endpoint := testEndpoint()

			// a stale file at the endpoint is replaced
			require.NoError(t, os.WriteFile(endpoint, nil, 0o600))

			listener, err := Listen(endpoint, socketType, 1)
			require.NoError(t, err)
			defer os.Remove(endpoint)
			defer sys.Close(listener)

			_, err = Accept(listener)
			require.ErrorIs(t, err, sys.EAGAIN, "accept without a pending connection must not block")

			client := NewSocket(socketType, -1)
			defer client.Close()
			require.True(t, client.Connect(endpoint))

			handle, err := Accept(listener)
			require.NoError(t, err)
			server := NewSocket(socketType, handle)
			defer server.Close()

			require.Equal(t, transport.StatusSuccess, client.WriteMessage(common.NewEnvelopeFromBytes([]byte("hi"))))
			status, envelopes := server.ReadMessages()
			require.Equal(t, transport.StatusSuccess, status)
			require.Len(t, envelopes, 1)
			require.Equal(t, []byte("hi"), envelopes[0].Data())
		})
	}
}

func TestListenRejectsLongEndpoint(t *testing.T) {
	endpoint := "/tmp/" + string(make([]byte, base.MaxEndpointLength))
	_, err := Listen(endpoint, common.SocketTypeAuto, 1)
	require.Error(t, err)
}
