// Package prometheus implements the metrics interfaces with client_golang
// collectors registered on the global metrics registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittolpd/pkg/metrics"
)

// lpdMetrics is the Prometheus implementation of metrics.LPDMetrics.
type lpdMetrics struct {
	commandsTotal       *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	bytesReceived       *prometheus.CounterVec
	acksSent            *prometheus.CounterVec
	activeConnections   prometheus.Gauge
	queuedConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsRejected *prometheus.CounterVec
}

// NewLPDMetrics creates a new Prometheus-backed LPDMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewLPDMetrics() metrics.LPDMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopLPDMetrics()
	}

	reg := metrics.GetRegistry()

	return &lpdMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_lpd_commands_total",
				Help: "Total number of LPD commands by command and status",
			},
			[]string{"command", "status"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittolpd_lpd_command_duration_seconds",
				Help: "Duration of LPD commands in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
					120.0, // 2m
				},
			},
			[]string{"command"},
		),
		bytesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_lpd_bytes_received_total",
				Help: "Total payload bytes received by file kind",
			},
			[]string{"kind"}, // control or data
		),
		acksSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_lpd_acks_sent_total",
				Help: "Total acknowledgements sent by polarity",
			},
			[]string{"ack"}, // positive or negative
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittolpd_lpd_active_connections",
				Help: "Current number of LPD connections being served",
			},
		),
		queuedConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittolpd_lpd_queued_connections",
				Help: "Current number of accepted LPD connections waiting for a worker",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittolpd_lpd_connections_accepted_total",
				Help: "Total number of LPD connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittolpd_lpd_connections_closed_total",
				Help: "Total number of LPD connections closed",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_lpd_connections_rejected_total",
				Help: "Total number of LPD connections closed without being served",
			},
			[]string{"reason"},
		),
	}
}

func (m *lpdMetrics) RecordCommand(command string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.commandsTotal.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func (m *lpdMetrics) RecordBytesReceived(kind string, bytes int64) {
	if bytes > 0 {
		m.bytesReceived.WithLabelValues(kind).Add(float64(bytes))
	}
}

func (m *lpdMetrics) RecordAcks(positive, negative int) {
	if positive > 0 {
		m.acksSent.WithLabelValues("positive").Add(float64(positive))
	}
	if negative > 0 {
		m.acksSent.WithLabelValues("negative").Add(float64(negative))
	}
}

func (m *lpdMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *lpdMetrics) SetQueuedConnections(count int) {
	m.queuedConnections.Set(float64(count))
}

func (m *lpdMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *lpdMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *lpdMetrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}
