package lpd

import (
	"context"
	"io"
)

// Handler receives the decoded requests of exactly one connection.
//
// The protocol engine calls a Handler sequentially from a single goroutine,
// so implementations need no locking for per-connection state. State shared
// between connections (queues, stores) is the implementation's concern.
//
// Every error returned by a Handler ends the connection: the engine wraps it
// in a *HandlerError, sends nothing further and closes the socket.
type Handler interface {
	// PrintJobs asks the daemon to start printing the jobs waiting in queue.
	PrintJobs(ctx context.Context, queue string) error

	// StartPrinterJob is called once per ReceivePrinterJob command. Returning
	// false refuses the job: the client receives a negative acknowledgement
	// and the command ends.
	StartPrinterJob(ctx context.Context, queue string) (bool, error)

	// ReceiveControlFile must consume exactly length bytes from r. The
	// returned bool decides the acknowledgement sent after the terminator.
	ReceiveControlFile(ctx context.Context, r io.Reader, length int64, name string) (bool, error)

	// ReceiveDataFile must consume exactly length bytes from r. The data file
	// is never buffered by the engine.
	ReceiveDataFile(ctx context.Context, r io.Reader, length int64, name string) (bool, error)

	// AbortPrinterJob discards everything received for the current job. The
	// client may continue to send files afterwards.
	AbortPrinterJob(ctx context.Context) error

	// EndPrinterJob is called when the client closes the connection after a
	// started job.
	EndPrinterJob(ctx context.Context) error

	// RemoveJobs removes the jobs of queue selected by jobIDs on behalf of
	// agent. jobIDs is empty, never nil, when the client named no jobs.
	RemoveJobs(ctx context.Context, queue, agent string, jobIDs []string) error

	// SendQueueStateShort returns the text written back verbatim for a short
	// queue listing.
	SendQueueStateShort(ctx context.Context, queue string, jobIDs []string) (string, error)

	// SendQueueStateLong returns the text written back verbatim for a long
	// queue listing.
	SendQueueStateLong(ctx context.Context, queue string, jobIDs []string) (string, error)
}

// HandlerFactory produces one Handler per accepted connection.
//
// NewHandler is called concurrently from the server's workers and must be
// safe for concurrent use. A nil result closes the connection without reply.
type HandlerFactory interface {
	NewHandler() Handler
}

// HandlerFactoryFunc adapts a plain function to a HandlerFactory.
type HandlerFactoryFunc func() Handler

// NewHandler calls f.
func (f HandlerFactoryFunc) NewHandler() Handler {
	return f()
}
