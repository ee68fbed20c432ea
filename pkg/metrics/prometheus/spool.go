package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittolpd/pkg/metrics"
)

type spoolMetrics struct {
	jobsReceived *prometheus.CounterVec
	jobBytes     *prometheus.HistogramVec
	jobsRejected *prometheus.CounterVec
	jobsRemoved  *prometheus.CounterVec
}

// NewSpoolMetrics creates a Prometheus-backed SpoolMetrics, or a no-op one
// when metrics are disabled.
func NewSpoolMetrics() metrics.SpoolMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSpoolMetrics()
	}

	reg := metrics.GetRegistry()

	return &spoolMetrics{
		jobsReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_spool_jobs_received_total",
				Help: "Total number of print jobs persisted by queue",
			},
			[]string{"queue"},
		),
		jobBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittolpd_spool_job_bytes",
				Help: "Total data file size of persisted print jobs",
				Buckets: []float64{
					1024,      // 1KB
					65536,     // 64KB
					1048576,   // 1MB
					10485760,  // 10MB
					104857600, // 100MB
				},
			},
			[]string{"queue"},
		),
		jobsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_spool_jobs_rejected_total",
				Help: "Total number of refused jobs or files by queue and reason",
			},
			[]string{"queue", "reason"},
		),
		jobsRemoved: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittolpd_spool_jobs_removed_total",
				Help: "Total number of removed print jobs by queue",
			},
			[]string{"queue"},
		),
	}
}

func (m *spoolMetrics) RecordJobReceived(queue string, bytes int64) {
	m.jobsReceived.WithLabelValues(queue).Inc()
	m.jobBytes.WithLabelValues(queue).Observe(float64(bytes))
}

func (m *spoolMetrics) RecordJobRejected(queue, reason string) {
	m.jobsRejected.WithLabelValues(queue, reason).Inc()
}

func (m *spoolMetrics) RecordJobRemoved(queue string) {
	m.jobsRemoved.WithLabelValues(queue).Inc()
}
