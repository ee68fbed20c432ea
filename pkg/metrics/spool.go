package metrics

// SpoolMetrics provides observability for the print job spool.
type SpoolMetrics interface {
	// RecordJobReceived counts a job persisted in queue with its total
	// data file size.
	RecordJobReceived(queue string, bytes int64)

	// RecordJobRejected counts a job or file refused by the spool.
	//
	// Parameters:
	//   - reason: "unknown_queue", "locked", "too_large", "incomplete"
	RecordJobRejected(queue, reason string)

	// RecordJobRemoved counts a job removed by a client or the admin API.
	RecordJobRemoved(queue string)
}

// NewNoopSpoolMetrics returns a SpoolMetrics that discards everything.
func NewNoopSpoolMetrics() SpoolMetrics {
	return noopSpoolMetrics{}
}

type noopSpoolMetrics struct{}

func (noopSpoolMetrics) RecordJobReceived(queue string, bytes int64) {}
func (noopSpoolMetrics) RecordJobRejected(queue, reason string)      {}
func (noopSpoolMetrics) RecordJobRemoved(queue string)               {}
