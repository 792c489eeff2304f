package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket type
// --------------------------------------------------------------------------

// SocketType selects the transport variant of a channel
type SocketType string

const (
	// SocketTypeAuto uses seqpacket sockets if the kernel supports them and stream sockets otherwise
	SocketTypeAuto SocketType = "auto"
	// SocketTypeSeqPacket uses packet preserving sockets (one message per packet)
	SocketTypeSeqPacket SocketType = "seqpacket"
	// SocketTypeStream uses stream sockets with length prefixed frames
	SocketTypeStream SocketType = "stream"
)

// ParseSocketType converts a string into a SocketType
func ParseSocketType(s string) (SocketType, error) {
	switch SocketType(strings.ToLower(s)) {
	case SocketTypeAuto, "":
		return SocketTypeAuto, nil
	case SocketTypeSeqPacket:
		return SocketTypeSeqPacket, nil
	case SocketTypeStream:
		return SocketTypeStream, nil
	default:
		return "", fmt.Errorf("invalid socket type %s (expected one of: auto, seqpacket, stream)", s)
	}
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of a listening endpoint
type ServerConfig struct {
	// Endpoint is the filesystem path the listener binds to
	Endpoint string
	// SocketType selects the transport variant
	SocketType SocketType
	// Backlog is the listen backlog
	Backlog int

	// Echo sends every received message back to its sender
	Echo bool

	// MetricsEndpoint is the http address metrics are served on (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Listener settings
	addSection("Listener")
	addField("Endpoint", c.Endpoint)
	addField("Socket Type", string(c.SocketType))
	addField("Backlog", strconv.Itoa(c.Backlog))
	addField("Echo", strconv.FormatBool(c.Echo))

	// Metrics
	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a connecting channel
type ClientConfig struct {
	// Endpoint is the filesystem path of the listener
	Endpoint string
	// SocketType selects the transport variant
	SocketType SocketType
	// ConnectRetries is how often connecting is retried
	ConnectRetries int
	// TimeoutSecond bounds how long the client waits for replies
	TimeoutSecond int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Socket Type", string(c.SocketType))
	addField("Connect Retries", strconv.Itoa(c.ConnectRetries))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
