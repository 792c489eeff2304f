package server

import "github.com/VictoriaMetrics/metrics"

// Listener and service metrics, exposed by the serve command via metrics.WritePrometheus
var (
	acceptedConnections = metrics.NewCounter(`dloop_server_connections_accepted_total`)
	rejectedConnections = metrics.NewCounter(`dloop_server_connections_rejected_total`)
	closedConnections   = metrics.NewCounter(`dloop_server_connections_closed_total`)
	handledMessages     = metrics.NewCounter(`dloop_server_messages_handled_total`)
	invalidMessages     = metrics.NewCounter(`dloop_server_messages_invalid_total`)
	failedReplies       = metrics.NewCounter(`dloop_server_replies_failed_total`)
	handleDuration      = metrics.NewSummary(`dloop_server_handle_duration_seconds`)
)
