// Package cmd implements the command-line interface of dLoop. It provides
// commands for running a service on a local endpoint and for talking to it.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a service that answers messages on an endpoint
//   - client: The send and perf commands (one shot messages, ping-pong benchmark)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dloop -help for a list of all commands.
package cmd
