package metrics

import "time"

// LPDMetrics provides observability for the line printer daemon adapter.
//
// Implementations can collect metrics about dispatched commands, received
// bytes, acknowledgements and the connection lifecycle. This interface is
// optional - if not provided to the LPD adapter, a no-op implementation is
// used with zero overhead.
type LPDMetrics interface {
	// RecordCommand records a completed command.
	//
	// Parameters:
	//   - command: Command name (e.g., "ReceivePrinterJob", "QueueStateShort")
	//   - duration: Time from the command byte to the end of the command
	//   - err: Error if the command failed, nil if successful
	RecordCommand(command string, duration time.Duration, err error)

	// RecordBytesReceived records payload bytes of control or data files.
	//
	// Parameters:
	//   - kind: "control" or "data"
	//   - bytes: Number of payload bytes
	RecordBytesReceived(kind string, bytes int64)

	// RecordAcks records acknowledgements sent to a client.
	RecordAcks(positive, negative int)

	// SetActiveConnections updates the number of connections being served.
	SetActiveConnections(count int32)

	// SetQueuedConnections updates the number of accepted connections
	// waiting for a worker.
	SetQueuedConnections(count int)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionRejected counts connections closed without being
	// served.
	//
	// Parameters:
	//   - reason: "rate_limited" or "queue_full"
	RecordConnectionRejected(reason string)
}

// NewNoopLPDMetrics returns an LPDMetrics that discards everything.
func NewNoopLPDMetrics() LPDMetrics {
	return noopLPDMetrics{}
}

// noopLPDMetrics is a no-op implementation of LPDMetrics with zero overhead.
type noopLPDMetrics struct{}

func (noopLPDMetrics) RecordCommand(command string, duration time.Duration, err error) {}
func (noopLPDMetrics) RecordBytesReceived(kind string, bytes int64)                     {}
func (noopLPDMetrics) RecordAcks(positive, negative int)                               {}
func (noopLPDMetrics) SetActiveConnections(count int32)                                {}
func (noopLPDMetrics) SetQueuedConnections(count int)                                  {}
func (noopLPDMetrics) RecordConnectionAccepted()                                       {}
func (noopLPDMetrics) RecordConnectionClosed()                                         {}
func (noopLPDMetrics) RecordConnectionRejected(reason string)                          {}
