package client

import (
	"github.com/ValentinKolb/dLoop/rpc/channel"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/serializer"
	"github.com/ValentinKolb/dLoop/rpc/server"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startService runs an echo service on a unique endpoint until the test ends
func startService(t *testing.T, s serializer.IRPCSerializer) string {
	t.Helper()

	config := common.ServerConfig{
		Endpoint:   filepath.Join(os.TempDir(), "dloop-"+uuid.NewString()[:8]+".sock"),
		SocketType: common.SocketTypeAuto,
		Backlog:    4,
		Echo:       true,
		LogLevel:   "info",
	}

	service, err := server.NewService(config, s, server.NewEchoHandler())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		service.Serve()
	}()

	t.Cleanup(func() {
		service.Stop()
		<-done
		_ = service.Close()
	})
	return config.Endpoint
}

func newClient(t *testing.T, endpoint string, s serializer.IRPCSerializer) *Client {
	t.Helper()
	c, err := NewClient(common.ClientConfig{
		Endpoint:       endpoint,
		SocketType:     common.SocketTypeAuto,
		ConnectRetries: 3,
		TimeoutSecond:  5,
	}, s)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCallEcho(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob", "cbor"} {
		t.Run(name, func(t *testing.T) {
			s, _ := serializer.FromName(name)
			c := newClient(t, startService(t, s), s)

			for i := 0; i < 10; i++ {
				resp, err := c.Call(common.NewTextMessage(0, "hello"))
				require.NoError(t, err)
				require.Equal(t, common.MsgTSuccess, resp.MsgType)
				require.Equal(t, uint64(i+1), resp.Seq)
				require.Equal(t, []byte("hello"), resp.Body)
			}

			resp, err := c.Call(common.NewPingMessage(0, make([]byte, 512)))
			require.NoError(t, err)
			require.Equal(t, common.MsgTPong, resp.MsgType)
			require.Len(t, resp.Body, 512)
		})
	}
}

func TestCallWithAttachment(t *testing.T) {
	s := serializer.NewBinarySerializer()
	c := newClient(t, startService(t, s), s)

	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	resp, err := c.Call(common.NewTextMessage(0, "file"), common.NewFileAttachment(f))
	require.NoError(t, err)
	require.Equal(t, "attachments=1 bytes=1000", string(resp.Meta))
}

func TestCallErrorResponse(t *testing.T) {
	s := serializer.NewBinarySerializer()
	c := newClient(t, startService(t, s), s)

	_, err := c.Call(&common.Message{MsgType: common.MsgTUnknown})
	require.Error(t, err)

	// the connection survives error replies
	_, err = c.Call(common.NewTextMessage(0, "still there"))
	require.NoError(t, err)
}

func TestSendIsNotAnswered(t *testing.T) {
	s := serializer.NewBinarySerializer()
	c := newClient(t, startService(t, s), s)

	// far more than the socket buffers hold if every message were echoed
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 2000; i++ {
			if err := c.Send(common.NewTextMessage(0, "hello world")); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("sending notifications blocked")
	}

	resp, err := c.Call(common.NewTextMessage(0, "after"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), resp.Seq)
	require.Equal(t, []byte("after"), resp.Body)
}

func TestCallTimesOut(t *testing.T) {
	a, b, err := channel.NewConnectedPair(common.SocketTypeAuto)
	require.NoError(t, err)
	defer b.Terminate()

	// nobody answers on b
	c, err := NewClientFromChannel(common.ClientConfig{TimeoutSecond: 1}, serializer.NewBinarySerializer(), a)
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	_, err = c.Call(common.NewTextMessage(0, "anyone?"))
	require.Error(t, err)
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestCallFailsWhenPeerCloses(t *testing.T) {
	a, b, err := channel.NewConnectedPair(common.SocketTypeAuto)
	require.NoError(t, err)

	c, err := NewClientFromChannel(common.ClientConfig{TimeoutSecond: 5}, serializer.NewBinarySerializer(), a)
	require.NoError(t, err)
	defer c.Close()

	b.Terminate()

	_, err = c.Call(common.NewTextMessage(0, "gone"))
	require.Error(t, err)
	require.False(t, c.IsConnected())
}

func TestConnectToMissingEndpoint(t *testing.T) {
	_, err := NewClient(common.ClientConfig{
		Endpoint:       filepath.Join(os.TempDir(), "dloop-missing-"+uuid.NewString()[:8]+".sock"),
		ConnectRetries: 1,
	}, serializer.NewBinarySerializer())
	require.Error(t, err)
}
