package config

import (
	"github.com/marmos91/dittolpd/pkg/metrics"
	promMetrics "github.com/marmos91/dittolpd/pkg/metrics/prometheus"
	contents3 "github.com/marmos91/dittolpd/pkg/store/content/s3"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// LPDMetrics is the metrics collector for the LPD adapter (never nil, uses noop if disabled)
	LPDMetrics metrics.LPDMetrics

	// SpoolMetrics is the metrics collector for the spool (never nil)
	SpoolMetrics metrics.SpoolMetrics

	// S3Metrics is the metrics collector for the S3 content store (nil if disabled)
	S3Metrics contents3.S3Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			LPDMetrics:   metrics.NewNoopLPDMetrics(),
			SpoolMetrics: metrics.NewNoopSpoolMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Server.Metrics.Port,
		}),
		LPDMetrics:   promMetrics.NewLPDMetrics(),
		SpoolMetrics: promMetrics.NewSpoolMetrics(),
		S3Metrics:    promMetrics.NewS3Metrics(),
	}
}
