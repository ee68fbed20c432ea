package lpd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/lpd"
)

// JobState tracks a ReceivePrinterJob command.
type JobState int

const (
	JobAwaitingStart JobState = iota
	JobInProgress
	JobEnded
	JobAborted
)

func (s JobState) String() string {
	switch s {
	case JobAwaitingStart:
		return "awaiting-start"
	case JobInProgress:
		return "in-progress"
	case JobEnded:
		return "ended"
	case JobAborted:
		return "aborted"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// receiveJob holds the state of one ReceivePrinterJob command.
type receiveJob struct {
	ctx context.Context
	h   lpd.Handler
	r   *bufio.Reader
	w   io.Writer
	res *Result
}

func (j *receiveJob) setState(s JobState) {
	j.res.JobState = s
}

// handleReceivePrinterJob: 02 queue LF, then sub-commands until the peer
// closes the connection.
func handleReceivePrinterJob(ctx context.Context, h lpd.Handler, r *bufio.Reader, w io.Writer, res *Result) error {
	j := &receiveJob{ctx: ctx, h: h, r: r, w: w, res: res}
	j.setState(JobAwaitingStart)

	queue, err := readQueueName(r)
	if err != nil {
		return err
	}
	res.Queue = queue

	accepted, err := h.StartPrinterJob(ctx, queue)
	if err != nil {
		return &lpd.HandlerError{Op: "StartPrinterJob", Err: err}
	}
	if !accepted {
		j.setState(JobEnded)
		res.ack(false)
		return WriteAck(w, false)
	}

	j.setState(JobInProgress)
	err = WriteAck(w, true)
	if err == nil {
		res.ack(true)
		err = j.loop()
	}
	return j.finish(err)
}

// loop serves sub-commands. A nil return means the peer closed the stream
// between sub-commands.
func (j *receiveJob) loop() error {
	for {
		code, ok, err := ReadCode(j.r)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		switch sub := lpd.SubCommand(code); sub {
		case lpd.SubAbortJob:
			if err := j.h.AbortPrinterJob(j.ctx); err != nil {
				return &lpd.HandlerError{Op: "AbortPrinterJob", Err: err}
			}
			j.res.Aborts++
			logger.Debug("LPD job for queue %s aborted by client", j.res.Queue)
		case lpd.SubReceiveControlFile:
			if err := j.receiveFile(lpd.ControlFile); err != nil {
				return err
			}
		case lpd.SubReceiveDataFile:
			if err := j.receiveFile(lpd.DataFile); err != nil {
				return err
			}
		default:
			return &lpd.ProtocolError{Kind: lpd.KindUnknownSubCommand, Code: code}
		}
	}
}

// finish moves the job out of the in-progress state. A peer that went away
// completes the job; any other failure aborts it before the error is
// propagated. Only errors from the connection itself can mean the peer
// left: a handler error aborts whatever its cause.
func (j *receiveJob) finish(err error) error {
	var herr *lpd.HandlerError
	if err == nil || (!errors.As(err, &herr) && lpd.IsEndOfStream(err)) {
		if err != nil {
			logger.Debug("LPD peer left during job for queue %s: %v", j.res.Queue, err)
		}
		j.setState(JobEnded)
		if endErr := j.h.EndPrinterJob(j.ctx); endErr != nil {
			return &lpd.HandlerError{Op: "EndPrinterJob", Err: endErr}
		}
		return nil
	}

	j.setState(JobAborted)
	if abortErr := j.h.AbortPrinterJob(j.ctx); abortErr != nil {
		logger.Warn("LPD abort after failure on queue %s: %v", j.res.Queue, abortErr)
	}
	return err
}

// ParseFileDescriptor parses "<length> <name>". Control files must have a
// positive length, data files a non-negative one.
func ParseFileDescriptor(line string, kind lpd.FileKind) (int64, string, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, "", &lpd.ProtocolError{Kind: lpd.KindInvalidFileDescriptor, Detail: line}
	}

	length, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, "", &lpd.ProtocolError{Kind: lpd.KindInvalidFileLength, Detail: fields[0], Err: err}
	}
	if length < 0 || (kind == lpd.ControlFile && length == 0) {
		return 0, "", &lpd.ProtocolError{Kind: lpd.KindInvalidFileLength, Detail: fields[0]}
	}
	return length, fields[1], nil
}

// receiveFile runs one control or data file transfer: descriptor, ack,
// payload, terminator, ack.
func (j *receiveJob) receiveFile(kind lpd.FileKind) error {
	line, err := ReadLine(j.r)
	if err != nil {
		return err
	}
	length, name, err := ParseFileDescriptor(line, kind)
	if err != nil {
		return err
	}

	if err := WriteAck(j.w, true); err != nil {
		return err
	}
	j.res.ack(true)

	payload := &io.LimitedReader{R: j.r, N: length}
	var accepted bool
	if kind == lpd.ControlFile {
		accepted, err = j.h.ReceiveControlFile(j.ctx, payload, length, name)
	} else {
		accepted, err = j.h.ReceiveDataFile(j.ctx, payload, length, name)
	}
	left := payload.N
	if drainErr := j.drain(kind, name, payload, length); drainErr != nil {
		return drainErr
	}
	if err != nil {
		op := "ReceiveDataFile"
		if kind == lpd.ControlFile {
			op = "ReceiveControlFile"
		}
		return &lpd.HandlerError{Op: op, Err: err}
	}
	if left > 0 {
		logger.Warn("LPD %s file %s: handler left %d of %d bytes unread", kind, name, left, length)
		accepted = false
	}

	complete, err := j.readTerminator(kind, name)
	if err != nil {
		return err
	}

	ok := accepted && complete
	if err := WriteAck(j.w, ok); err != nil {
		return err
	}
	j.res.ack(ok)
	return nil
}

// drain discards what the handler left of the payload and records the bytes
// received. Running out of stream before length bytes means the peer went
// away, which is decided here from the connection alone.
func (j *receiveJob) drain(kind lpd.FileKind, name string, payload *io.LimitedReader, length int64) error {
	left := payload.N
	drained, err := io.Copy(io.Discard, payload)
	consumed := length - left + drained
	j.count(kind, consumed)
	if err != nil {
		return err
	}
	if drained < left {
		return &lpd.ProtocolError{
			Kind:   lpd.KindShortRead,
			Detail: fmt.Sprintf("%s file %s: got %d of %d bytes", kind, name, consumed, length),
		}
	}
	return nil
}

func (j *receiveJob) count(kind lpd.FileKind, n int64) {
	if kind == lpd.ControlFile {
		j.res.ControlFiles++
		j.res.ControlBytes += n
	} else {
		j.res.DataFiles++
		j.res.DataBytes += n
	}
}

// readTerminator reports whether the byte following a payload was 0x00. A
// closed stream is not an error here: the negative acknowledgement is still
// attempted and the next sub-command read observes the end of stream.
func (j *receiveJob) readTerminator(kind lpd.FileKind, name string) (bool, error) {
	b, err := j.r.ReadByte()
	switch {
	case err == nil && b == lpd.Terminator:
		return true, nil
	case err == nil:
		logger.Warn("LPD %s file %s: terminator byte was 0x%02x", kind, name, b)
		return false, nil
	case errors.Is(err, io.EOF):
		logger.Warn("LPD %s file %s: stream ended before terminator", kind, name)
		return false, nil
	default:
		return false, err
	}
}
