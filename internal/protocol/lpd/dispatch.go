package lpd

import (
	"bufio"
	"context"
	"io"

	"github.com/marmos91/dittolpd/pkg/lpd"
)

// Result summarizes one dispatched command for logging and metrics.
type Result struct {
	Command lpd.Command
	Queue   string

	// Receive-job counters.
	ControlFiles int
	DataFiles    int
	ControlBytes int64
	DataBytes    int64
	Acks         int
	Nacks        int
	Aborts       int
	JobState     JobState
}

func (r *Result) ack(positive bool) {
	if positive {
		r.Acks++
	} else {
		r.Nacks++
	}
}

// commandFunc handles one command after its code byte has been consumed.
type commandFunc func(ctx context.Context, h lpd.Handler, r *bufio.Reader, w io.Writer, res *Result) error

var commandTable = map[lpd.Command]commandFunc{
	lpd.CmdPrintJobs:         handlePrintJobs,
	lpd.CmdReceivePrinterJob: handleReceivePrinterJob,
	lpd.CmdQueueStateShort:   handleQueueStateShort,
	lpd.CmdQueueStateLong:    handleQueueStateLong,
	lpd.CmdRemoveJobs:        handleRemoveJobs,
}

// Dispatch reads the command byte of a fresh connection, obtains a Handler
// from factory and runs the matching command to completion.
//
// A peer that closes the connection before sending anything yields a nil
// Result and a nil error. An unknown command byte yields a ProtocolError
// before the factory is consulted. Nothing is ever written back for a
// command that fails before its own protocol starts.
func Dispatch(ctx context.Context, factory lpd.HandlerFactory, r *bufio.Reader, w io.Writer) (*Result, error) {
	code, ok, err := ReadCode(r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	cmd := lpd.Command(code)
	fn, found := commandTable[cmd]
	if !found {
		return nil, &lpd.ProtocolError{Kind: lpd.KindUnknownCommand, Code: code}
	}

	res := &Result{Command: cmd}
	h := factory.NewHandler()
	if h == nil {
		return res, lpd.ErrHandlerUnavailable
	}

	return res, fn(ctx, h, r, w, res)
}
