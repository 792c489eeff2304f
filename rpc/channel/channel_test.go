package channel

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/lib/looper"
	"github.com/ValentinKolb/dLoop/lib/shm"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/transport/base"
	"github.com/ValentinKolb/dLoop/rpc/transport/unix"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testSocketTypes returns the socket types available on this host
func testSocketTypes() []common.SocketType {
	types := []common.SocketType{common.SocketTypeStream}
	if unix.SupportedSocketType() == common.SocketTypeSeqPacket {
		types = append(types, common.SocketTypeSeqPacket)
	}
	return types
}

func newLooper(t *testing.T) *looper.Looper {
	t.Helper()
	l, err := looper.New()
	if err != nil {
		t.Fatalf("Failed to create looper: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newPair(t *testing.T, socketType common.SocketType) (*Channel, *Channel) {
	t.Helper()
	a, b, err := NewConnectedPair(socketType)
	if err != nil {
		t.Fatalf("Failed to create connected channels: %v", err)
	}
	t.Cleanup(func() {
		a.Terminate()
		b.Terminate()
	})
	return a, b
}

// runLoop runs l until it is terminated or timeout expires
func runLoop(t *testing.T, l *looper.Looper, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Loop()
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		l.Terminate()
		<-done
		t.Fatalf("loop was not terminated within %s", timeout)
	}
}

func TestTwoWayExchange(t *testing.T) {
	const messages = 25

	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			l := newLooper(t)
			a, b := newPair(t, socketType)

			// callbacks run on the loop goroutine, so they only record failures
			// b answers every message with the same number plus one
			b.SetMessageReceivedCallback(func(e *common.Envelope) {
				var n uint32
				if !assert.True(t, common.Decode(e, &n)) {
					l.Terminate()
					return
				}
				reply := common.NewEnvelope()
				common.Encode(reply, n+1)
				assert.True(t, b.SendMessage(reply))
			})

			var replies []uint32
			a.SetMessageReceivedCallback(func(e *common.Envelope) {
				var n uint32
				if !assert.True(t, common.Decode(e, &n)) {
					l.Terminate()
					return
				}
				replies = append(replies, n)
				if len(replies) == messages {
					l.Terminate()
				}
			})

			a.ScheduleInLooper(l)
			b.ScheduleInLooper(l)

			for i := 0; i < messages; i++ {
				e := common.NewEnvelope()
				common.Encode(e, uint32(i*10))
				require.True(t, a.SendMessage(e))
			}

			runLoop(t, l, 5*time.Second)

			require.Len(t, replies, messages)
			for i, n := range replies {
				require.Equal(t, uint32(i*10+1), n, "reply %d out of order", i)
			}

			a.UnscheduleFromLooper(l)
			b.UnscheduleFromLooper(l)
		})
	}
}

func TestSharedMemoryAttachment(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			l := newLooper(t)
			a, b := newPair(t, socketType)

			segment, err := shm.New(4096)
			require.NoError(t, err)
			defer segment.Close()
			copy(segment.Bytes(), "hello from the other side")

			var received string
			var attachments int
			var mapErr error
			b.SetMessageReceivedCallback(func(e *common.Envelope) {
				defer l.Terminate()

				attachments = len(e.Attachments())
				var size int32
				if attachments != 1 || !common.Decode(e, &size) {
					return
				}

				mapped, err := shm.Map(e.Attachments()[0].Handle(), int(size))
				if err != nil {
					mapErr = err
					return
				}
				defer mapped.Close()
				received = string(mapped.Bytes()[:25])
			})
			b.ScheduleInLooper(l)

			e := common.NewEnvelope()
			common.Encode(e, int32(segment.Size()))
			e.AddAttachment(common.NewAttachment(segment.Handle()))
			require.True(t, a.SendMessage(e))

			runLoop(t, l, 5*time.Second)
			require.Equal(t, 1, attachments)
			require.NoError(t, mapErr)
			require.Equal(t, "hello from the other side", received)
		})
	}
}

func TestTerminationOnPeerClose(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			l := newLooper(t)
			a, b := newPair(t, socketType)

			terminated := 0
			a.SetTerminationCallback(func() {
				terminated++
				l.Terminate()
			})
			a.ScheduleInLooper(l)

			b.Terminate()
			require.False(t, b.IsReady())
			require.False(t, b.IsConnected())

			runLoop(t, l, 5*time.Second)

			require.Equal(t, 1, terminated)
			require.False(t, a.IsConnected())
			require.False(t, a.SendMessage(common.NewEnvelopeFromBytes([]byte("too late"))))

			// a second terminate does not invoke the callback again
			a.Terminate()
			require.Equal(t, 1, terminated)
		})
	}
}

func TestTryConnect(t *testing.T) {
	endpoint := filepath.Join(os.TempDir(), fmt.Sprintf("dloop-%s.sock", uuid.NewString()[:8]))

	c := New(endpoint)
	defer c.Terminate()

	require.True(t, c.IsReady())
	require.False(t, c.IsConnected())
	require.False(t, c.TryConnect(), "connecting to a missing endpoint must fail")
	require.False(t, c.SendMessage(common.NewEnvelope()))

	listener, err := unix.Listen(endpoint, common.SocketTypeAuto, 1)
	require.NoError(t, err)
	defer os.Remove(endpoint)
	defer func() {
		if peer, err := unix.Accept(listener); err == nil {
			_ = sys.Close(peer)
		}
		_ = sys.Close(listener)
	}()

	require.True(t, c.TryConnect())
	require.True(t, c.IsConnected())
	require.True(t, c.TryConnect(), "TryConnect on a connected channel must succeed")
}

func TestScheduleIgnoresUnconnectedChannels(t *testing.T) {
	l := newLooper(t)
	c := New(filepath.Join(os.TempDir(), "dloop-unconnected.sock"))
	defer c.Terminate()

	c.ScheduleInLooper(nil)
	c.ScheduleInLooper(l)
	c.UnscheduleFromLooper(l)
	require.Nil(t, c.source)
}

func TestSendOversizeEnvelopePanics(t *testing.T) {
	a, _ := newPair(t, common.SocketTypeStream)

	require.Panics(t, func() {
		a.SendMessage(common.NewEnvelopeFromBytes(make([]byte, base.MaxBufferSize+1)))
	})
}

func TestEmptyEnvelope(t *testing.T) {
	for _, socketType := range testSocketTypes() {
		t.Run(string(socketType), func(t *testing.T) {
			l := newLooper(t)
			a, b := newPair(t, socketType)

			var received [][]byte
			b.SetMessageReceivedCallback(func(e *common.Envelope) {
				received = append(received, append([]byte{}, e.Data()...))
				l.Terminate()
			})
			b.ScheduleInLooper(l)

			require.True(t, a.SendMessage(common.NewEnvelope()))

			runLoop(t, l, 5*time.Second)
			b.UnscheduleFromLooper(l)

			require.Len(t, received, 1)
			if socketType == common.SocketTypeSeqPacket {
				require.Equal(t, []byte{0}, received[0], "seqpacket pads empty envelopes")
			} else {
				require.Empty(t, received[0])
			}
		})
	}
}
