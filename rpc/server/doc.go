// Package server implements the accepting side of dLoop. It listens on a
// filesystem endpoint, turns every accepted connection into a channel and
// answers the messages arriving on those channels.
//
// The package focuses on:
//   - Listening on an endpoint and handing out one channel per connection
//   - Running a looper that drives the listener and all accepted channels
//   - Pluggable message handling decoupled from the transport
//
// Key Components:
//
//   - Listener: Binds and listens on an endpoint (replacing a stale socket
//     file). Its ClientConnectionsSource accepts pending connections when
//     scheduled in a looper and passes each new channel to the channel
//     availability callback. Connections nobody takes are closed.
//
//   - Service: Combines a listener, a looper, a serializer and an
//     IMessageHandler. Serve blocks until Stop is called.
//
//   - IMessageHandler: Turns a received message into a reply. NewEchoHandler
//     echoes bodies and describes attachments, NewAckHandler only acknowledges.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:   "/tmp/dloop.sock",
//	  SocketType: common.SocketTypeAuto,
//	  Backlog:    8,
//	}
//
//	s, err := server.NewService(config, serializer.NewBinarySerializer(), server.NewEchoHandler())
//	if err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	defer s.Close()
//
//	go s.Serve()
//
// Thread Safety:
//
//	Listener methods may be called from any goroutine. Accepting and message
//	handling run on the goroutine calling Serve. Stop may be called from any
//	goroutine.
package server
