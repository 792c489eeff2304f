package server

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/lib/looper"
	"github.com/ValentinKolb/dLoop/rpc/channel"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/serializer"
	"github.com/puzpuzpuz/xsync/v3"
	sys "golang.org/x/sys/unix"
	"time"
)

// Service answers the messages of every client connected to one endpoint.
// All channels and the listener are scheduled in a single looper, so the
// handler runs on one thread.
//
// Usage:
//
//	s, err := server.NewService(config, serializer.NewBinarySerializer(), server.NewEchoHandler())
//	if err != nil {
//		panic(err)
//	}
//	defer s.Close()
//
//	go s.Serve()
//	...
//	s.Stop()
type Service struct {
	config     common.ServerConfig
	serializer serializer.IRPCSerializer
	handler    IMessageHandler
	looper     *looper.Looper
	listener   *Listener
	channels   *xsync.MapOf[*channel.Channel, struct{}]
}

// NewService creates a service listening on config.Endpoint
func NewService(
	config common.ServerConfig,
	serializer serializer.IRPCSerializer,
	handler IMessageHandler,
) (*Service, error) {
	backlog := config.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	l, err := looper.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create looper: %w", err)
	}

	listener := NewListenerOfType(config.Endpoint, config.SocketType, backlog)
	if !listener.IsListening() {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen on %s", config.Endpoint)
	}

	s := &Service{
		config:     config,
		serializer: serializer,
		handler:    handler,
		looper:     l,
		listener:   listener,
		channels:   xsync.NewMapOf[*channel.Channel, struct{}](),
	}
	listener.SetChannelAvailabilityCallback(s.addChannel)

	Logger.Infof("Created service")
	Logger.Infof(config.String())
	return s, nil
}

// Serve accepts clients and answers their messages until Stop is called.
// All client channels are terminated when Serve returns.
func (s *Service) Serve() {
	source := s.listener.ClientConnectionsSource()
	s.looper.AddSource(source)

	s.looper.Loop()

	s.looper.RemoveSource(source)
	s.channels.Range(func(c *channel.Channel, _ struct{}) bool {
		c.Terminate()
		return true
	})
}

// Stop makes Serve return. Safe to call from any goroutine.
func (s *Service) Stop() {
	s.looper.Terminate()
}

// Close stops listening and releases the looper. Serve must have returned.
func (s *Service) Close() error {
	s.listener.Close()
	return s.looper.Close()
}

// Endpoint returns the endpoint the service listens on
func (s *Service) Endpoint() string {
	return s.listener.Endpoint()
}

// ConnectionCount returns the number of connected clients
func (s *Service) ConnectionCount() int {
	return s.channels.Size()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// addChannel schedules an accepted channel
func (s *Service) addChannel(c *channel.Channel) {
	s.channels.Store(c, struct{}{})

	c.SetMessageReceivedCallback(func(e *common.Envelope) {
		s.handleEnvelope(c, e)
	})
	c.SetTerminationCallback(func() {
		s.channels.Delete(c)
		closedConnections.Inc()
		Logger.Debugf("client disconnected (%d connected)", s.channels.Size())
	})

	c.ScheduleInLooper(s.looper)
	Logger.Debugf("client connected (%d connected)", s.channels.Size())
}

// handleEnvelope decodes one request, lets the handler answer it and sends the reply
func (s *Service) handleEnvelope(c *channel.Channel, e *common.Envelope) {
	start := time.Now()
	defer handleDuration.UpdateDuration(start)

	attachments := e.Attachments()
	defer func() {
		for _, a := range attachments {
			_ = sys.Close(a.Handle())
		}
	}()

	var resp *common.Message
	msg, err := serializer.ReadEnvelope(s.serializer, e)
	if err != nil {
		invalidMessages.Inc()
		resp = common.NewErrorResponse(msg.Seq, err.Error())
	} else {
		handledMessages.Inc()
		resp = s.handler.Handle(&msg, attachments)
	}

	if resp == nil {
		return
	}
	if err == nil && msg.Seq == common.NotificationSeq {
		// the sender does not read replies, answering could fill its socket
		return
	}

	out, err := serializer.WriteEnvelope(s.serializer, *resp)
	if err != nil {
		Logger.Warningf("could not encode reply to %s #%d: %v", msg.MsgType, msg.Seq, err)
		out, err = serializer.WriteEnvelope(s.serializer, *common.NewErrorResponse(msg.Seq, "reply too large"))
		if err != nil {
			failedReplies.Inc()
			return
		}
	}

	if !c.SendMessage(out) {
		failedReplies.Inc()
		Logger.Debugf("could not send reply to %s #%d", msg.MsgType, msg.Seq)
	}
}
