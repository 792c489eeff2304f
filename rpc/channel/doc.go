// Package channel implements bidirectional message channels between two
// processes on top of the unix transports. A channel owns one socket, sends
// envelopes synchronously and delivers received envelopes through a callback
// on the thread of the Looper it is scheduled in.
//
// Key Components:
//
//   - Channel: Created for a named endpoint (New, NewOfType) and connected with
//     TryConnect, or created already connected (NewFromHandle, NewFromSocket,
//     NewConnectedPair). A permanent transport failure on send or receive
//     terminates the channel and invokes the termination callback once.
//
//   - Scheduling: ScheduleInLooper registers a lazily built looper.Source over
//     the socket handle. Every wake drains the socket and dispatches the
//     decoded envelopes in receive order.
//
//   - Metrics: VictoriaMetrics counters for sent and received messages and
//     attachments, send failures by status and terminations.
//
// Usage:
//
//	a, b, err := channel.NewConnectedPair(common.SocketTypeAuto)
//	if err != nil { ... }
//
//	b.SetMessageReceivedCallback(func(e *common.Envelope) { ... })
//	b.ScheduleInLooper(l)
//
//	a.SendMessage(common.NewEnvelopeFromBytes([]byte("hello")))
package channel
