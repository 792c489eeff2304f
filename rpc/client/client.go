package client

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dLoop/lib/looper"
	"github.com/ValentinKolb/dLoop/rpc/channel"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/serializer"
	sys "golang.org/x/sys/unix"
	"sync"
	"time"
)

// Client sends messages to a service and waits for the replies. While a call
// waits, the client runs its own looper on the calling goroutine, so a Client
// needs no background goroutine. Calls are serialized.
type Client struct {
	config     common.ClientConfig
	serializer serializer.IRPCSerializer
	looper     *looper.Looper
	channel    *channel.Channel

	callMu sync.Mutex
	seq    uint64

	// state of the running call, only touched on the calling goroutine
	want    uint64
	resp    *common.Message
	respErr error
}

// NewClient connects to config.Endpoint, retrying config.ConnectRetries times
func NewClient(config common.ClientConfig, serializer serializer.IRPCSerializer) (*Client, error) {
	c := channel.NewOfType(config.Endpoint, config.SocketType)
	if err := connectWithRetry(c, config.ConnectRetries); err != nil {
		c.Terminate()
		return nil, err
	}
	return NewClientFromChannel(config, serializer, c)
}

// NewClientFromChannel creates a client over a connected channel. The client
// takes ownership of the channel.
func NewClientFromChannel(config common.ClientConfig, serializer serializer.IRPCSerializer, c *channel.Channel) (*Client, error) {
	l, err := looper.New()
	if err != nil {
		c.Terminate()
		return nil, fmt.Errorf("failed to create looper: %w", err)
	}

	client := &Client{
		config:     config,
		serializer: serializer,
		looper:     l,
		channel:    c,
	}
	c.SetMessageReceivedCallback(client.onMessage)
	c.SetTerminationCallback(client.onTerminate)
	c.ScheduleInLooper(l)

	return client, nil
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Call sends req with the given attachments and waits for the reply. req is
// not modified, the sent copy gets the next sequence number. Error replies are
// returned as errors.
func (c *Client) Call(req *common.Message, attachments ...common.Attachment) (*common.Message, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.seq++
	msg, err := c.send(req, c.seq, attachments)
	if err != nil {
		return nil, err
	}

	resp, err := c.awaitReply(msg.Seq)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(msg, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Send sends req as a notification (sequence number 0) without waiting. The
// service does not answer notifications.
func (c *Client) Send(req *common.Message, attachments ...common.Attachment) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	_, err := c.send(req, common.NotificationSeq, attachments)
	return err
}

// IsConnected reports whether the connection to the service is alive
func (c *Client) IsConnected() bool {
	return c.channel.IsConnected()
}

// Close closes the connection and releases the looper
func (c *Client) Close() error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.channel.Terminate()
	return c.looper.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// send sends a copy of req numbered seq
func (c *Client) send(req *common.Message, seq uint64, attachments []common.Attachment) (*common.Message, error) {
	msg := *req
	msg.Seq = seq

	e, err := serializer.WriteEnvelope(c.serializer, msg, attachments...)
	if err != nil {
		return nil, err
	}

	if !c.channel.SendMessage(e) {
		if !c.channel.IsConnected() {
			return nil, fmt.Errorf("connection to %s is closed", c.config.Endpoint)
		}
		return nil, fmt.Errorf("failed to send %s #%d", msg.MsgType, msg.Seq)
	}
	return &msg, nil
}

// awaitReply runs the looper until the reply to seq arrived, the connection
// was closed or the timeout expired
func (c *Client) awaitReply(seq uint64) (*common.Message, error) {
	c.want = seq
	c.resp = nil
	c.respErr = nil

	timeout := time.Duration(c.config.TimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timer := looper.AsTimer(timeout)
	timer.SetWakeFunc(func() {
		c.respErr = fmt.Errorf("no reply to #%d within %s", seq, timeout)
		c.looper.Terminate()
	})
	c.looper.AddSource(timer)

	c.looper.Loop()

	c.looper.RemoveSource(timer)
	timer.Close()

	if c.resp != nil {
		return c.resp, nil
	}
	if c.respErr == nil {
		c.respErr = errors.New("loop terminated without a reply")
	}
	return nil, c.respErr
}

// onMessage stores the reply the running call waits for
func (c *Client) onMessage(e *common.Envelope) {
	// replies carry no handles the client could use
	for _, a := range e.Attachments() {
		_ = sys.Close(a.Handle())
	}

	msg, err := serializer.ReadEnvelope(c.serializer, e)
	if err != nil {
		Logger.Warningf("dropping undecodable reply: %v", err)
		return
	}
	if c.resp != nil || msg.Seq != c.want {
		Logger.Debugf("dropping reply %s #%d (waiting for #%d)", msg.MsgType, msg.Seq, c.want)
		return
	}

	c.resp = &msg
	c.looper.Terminate()
}

// onTerminate ends the running call when the service closes the connection
func (c *Client) onTerminate() {
	if c.respErr == nil {
		c.respErr = fmt.Errorf("connection to %s closed by peer", c.config.Endpoint)
	}
	c.looper.Terminate()
}
