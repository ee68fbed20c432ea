package lpd

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/marmos91/dittolpd/pkg/lpd"
)

// readQueueName reads a line holding nothing but a queue name.
func readQueueName(r *bufio.Reader) (string, error) {
	queue, err := ReadLine(r)
	if err != nil {
		return "", err
	}
	if queue == "" {
		return "", lpd.ErrMissingQueueName
	}
	return queue, nil
}

// handlePrintJobs: 01 queue LF. No reply.
func handlePrintJobs(ctx context.Context, h lpd.Handler, r *bufio.Reader, _ io.Writer, res *Result) error {
	queue, err := readQueueName(r)
	if err != nil {
		return err
	}
	res.Queue = queue

	if err := h.PrintJobs(ctx, queue); err != nil {
		return &lpd.HandlerError{Op: "PrintJobs", Err: err}
	}
	return nil
}

// queueStateRequest parses "queue [list]" shared by both listing commands.
func queueStateRequest(r *bufio.Reader) (string, []string, error) {
	line, err := ReadLine(r)
	if err != nil {
		return "", nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, lpd.ErrMissingQueueName
	}
	return fields[0], append([]string{}, fields[1:]...), nil
}

// handleQueueStateShort: 03 queue SP list LF. The handler's text is the reply.
func handleQueueStateShort(ctx context.Context, h lpd.Handler, r *bufio.Reader, w io.Writer, res *Result) error {
	queue, ids, err := queueStateRequest(r)
	if err != nil {
		return err
	}
	res.Queue = queue

	text, err := h.SendQueueStateShort(ctx, queue, ids)
	if err != nil {
		return &lpd.HandlerError{Op: "SendQueueStateShort", Err: err}
	}
	return WriteText(w, text)
}

// handleQueueStateLong: 04 queue SP list LF.
func handleQueueStateLong(ctx context.Context, h lpd.Handler, r *bufio.Reader, w io.Writer, res *Result) error {
	queue, ids, err := queueStateRequest(r)
	if err != nil {
		return err
	}
	res.Queue = queue

	text, err := h.SendQueueStateLong(ctx, queue, ids)
	if err != nil {
		return &lpd.HandlerError{Op: "SendQueueStateLong", Err: err}
	}
	return WriteText(w, text)
}

// handleRemoveJobs: 05 queue SP agent SP list LF. No reply.
func handleRemoveJobs(ctx context.Context, h lpd.Handler, r *bufio.Reader, _ io.Writer, res *Result) error {
	line, err := ReadLine(r)
	if err != nil {
		return err
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return &lpd.ProtocolError{Kind: lpd.KindInvalidRemoveRequest, Detail: line}
	}
	res.Queue = fields[0]

	ids := append([]string{}, fields[2:]...)
	if err := h.RemoveJobs(ctx, fields[0], fields[1], ids); err != nil {
		return &lpd.HandlerError{Op: "RemoveJobs", Err: err}
	}
	return nil
}
