// Package client implements the client side commands of the dloop CLI.
//
// Key Components:
//
//   - SendCmd: Sends text messages (optionally with an attached file handle)
//     and prints the replies.
//
//   - PerfCmd: Ping-pong benchmark built on testing.Benchmark plus a latency
//     distribution measured with a go-metrics timer. Without an endpoint it
//     benchmarks an in-process echo service.
package client
