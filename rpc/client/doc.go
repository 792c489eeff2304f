// Package client implements a synchronous request client for dLoop services.
// It connects a channel to a service endpoint, serializes common.Message
// values into envelopes and waits for the matching reply.
//
// Key Components:
//
//   - Client: Owns one channel and one looper. Call sends a message (plus
//     optional handle attachments) and runs the looper on the calling
//     goroutine until the reply with the same sequence number arrives, the
//     service disconnects or a looper timer reports the timeout.
//
//   - connectWithRetry: Connects with exponential backoff and jitter.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoint:       "/tmp/dloop.sock",
//	  SocketType:     common.SocketTypeAuto,
//	  ConnectRetries: 3,
//	  TimeoutSecond:  5,
//	}
//
//	c, err := client.NewClient(config, serializer.NewBinarySerializer())
//	if err != nil { ... }
//	defer c.Close()
//
//	resp, err := c.Call(common.NewTextMessage(0, "hello"))
package client
