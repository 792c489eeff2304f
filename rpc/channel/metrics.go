package channel

import "github.com/VictoriaMetrics/metrics"

// Channel metrics, exposed by the serve command via metrics.WritePrometheus
var (
	messagesSent          = metrics.NewCounter(`dloop_channel_messages_sent_total`)
	messagesReceived      = metrics.NewCounter(`dloop_channel_messages_received_total`)
	attachmentsSent       = metrics.NewCounter(`dloop_channel_attachments_sent_total`)
	attachmentsReceived   = metrics.NewCounter(`dloop_channel_attachments_received_total`)
	sendTemporaryFailures = metrics.NewCounter(`dloop_channel_send_failures_total{status="temporary"}`)
	sendPermanentFailures = metrics.NewCounter(`dloop_channel_send_failures_total{status="permanent"}`)
	readTemporaryFailures = metrics.NewCounter(`dloop_channel_read_failures_total{status="temporary"}`)
	terminations          = metrics.NewCounter(`dloop_channel_terminations_total`)
)
