package lpd

import (
	"context"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/lpd"
)

func acks(n int) []byte {
	return make([]byte, n)
}

func TestReceiveJobAbort(t *testing.T) {
	h := newRecorder()
	res, out, err := dispatch(t, h, "\x02my_queue\n\x01")
	require.NoError(t, err)
	assert.Equal(t, acks(1), out)
	assert.Equal(t, []string{"start:my_queue", "abort", "end"}, h.events)
	assert.Equal(t, 1, res.Aborts)
	assert.Equal(t, JobEnded, res.JobState)
}

func TestReceiveJobControlFile(t *testing.T) {
	h := newRecorder()
	res, out, err := dispatch(t, h, "\x02my_queue\n\x024 my_name\nABCD\x00")
	require.NoError(t, err)
	assert.Equal(t, acks(3), out)
	assert.Equal(t, []string{"start:my_queue", "control:my_name", "end"}, h.events)
	require.Len(t, h.files, 1)
	assert.Equal(t, []byte("ABCD"), h.files[0].data)
	assert.Equal(t, int64(4), h.files[0].length)
	assert.Equal(t, 1, res.ControlFiles)
	assert.Equal(t, int64(4), res.ControlBytes)
	assert.Equal(t, 3, res.Acks)
}

func TestReceiveJobDataFile(t *testing.T) {
	h := newRecorder()
	res, out, err := dispatch(t, h, "\x02my_queue\n\x034 my_name\nABCD\x00")
	require.NoError(t, err)
	assert.Equal(t, acks(3), out)
	require.Len(t, h.files, 1)
	assert.Equal(t, lpd.DataFile, h.files[0].kind)
	assert.Equal(t, "my_name", h.files[0].name)
	assert.Equal(t, []byte("ABCD"), h.files[0].data)
	assert.Equal(t, int64(4), res.DataBytes)
}

func TestReceiveJobAllFiles(t *testing.T) {
	h := newRecorder()
	input := "\x02my_queue\n" +
		"\x0212 cfA001host\nHhost\nPuser\n\x00" +
		"\x036 dfA001host\nHELLO\n\x00"
	res, out, err := dispatch(t, h, input)
	require.NoError(t, err)
	assert.Equal(t, acks(5), out)
	assert.Equal(t, []string{"start:my_queue", "control:cfA001host", "data:dfA001host", "end"}, h.events)
	assert.Equal(t, []byte("Hhost\nPuser\n"), h.files[0].data)
	assert.Equal(t, []byte("HELLO\n"), h.files[1].data)
	assert.Equal(t, 1, res.ControlFiles)
	assert.Equal(t, 1, res.DataFiles)
}

func TestReceiveJobBinaryPayload(t *testing.T) {
	h := newRecorder()
	payload := "\x00\x01\n\x02\xff"
	_, out, err := dispatch(t, h, "\x02q\n\x035 df\n"+payload+"\x00")
	require.NoError(t, err)
	assert.Equal(t, acks(3), out)
	assert.Equal(t, []byte(payload), h.files[0].data)
}

func TestReceiveJobEmptyDataFile(t *testing.T) {
	h := newRecorder()
	_, out, err := dispatch(t, h, "\x02q\n\x030 df\n\x00")
	require.NoError(t, err)
	assert.Equal(t, acks(3), out)
	assert.Empty(t, h.files[0].data)
}

func TestReceiveJobContinuesAfterAbort(t *testing.T) {
	h := newRecorder()
	_, out, err := dispatch(t, h, "\x02q\n\x01\x034 df\nABCD\x00")
	require.NoError(t, err)
	assert.Equal(t, acks(3), out)
	assert.Equal(t, []string{"start:q", "abort", "data:df", "end"}, h.events)
}

func TestReceiveJobRefused(t *testing.T) {
	h := newRecorder()
	h.refuse = true
	res, out, err := dispatch(t, h, "\x02locked\n\x034 df\nABCD\x00")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
	assert.Equal(t, []string{"start:locked"}, h.events)
	assert.Equal(t, JobEnded, res.JobState)
	assert.Equal(t, 1, res.Nacks)
}

func TestReceiveJobStartError(t *testing.T) {
	h := newRecorder()
	h.failOp = "start"
	_, out, err := dispatch(t, h, "\x02q\n")
	var herr *lpd.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "StartPrinterJob", herr.Op)
	assert.Empty(t, out)
	assert.Equal(t, []string{"start:q"}, h.events)
}

func TestReceiveJobHandlerRejectsFile(t *testing.T) {
	h := newRecorder()
	h.rejectAll = true
	res, out, err := dispatch(t, h, "\x02q\n\x034 df\nABCD\x00")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, out)
	assert.Equal(t, 1, res.Nacks)
}

func TestReceiveJobBadTerminator(t *testing.T) {
	h := newRecorder()
	_, out, err := dispatch(t, h, "\x02q\n\x034 df\nABCD\x07")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, out)
	assert.Equal(t, []string{"start:q", "data:df", "end"}, h.events)
}

func TestReceiveJobMissingTerminator(t *testing.T) {
	h := newRecorder()
	res, out, err := dispatch(t, h, "\x02q\n\x034 df\nABCD")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, out)
	assert.Equal(t, []string{"start:q", "data:df", "end"}, h.events)
	assert.Equal(t, JobEnded, res.JobState)
}

func TestReceiveJobDrainsUnreadPayload(t *testing.T) {
	h := newRecorder()
	h.skipRead = true
	res, out, err := dispatch(t, h, "\x02q\n\x034 df\nABCD\x00\x01")
	require.NoError(t, err)
	// The unread payload is discarded, so the following abort is still
	// recognized as a sub-command.
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, out)
	assert.Equal(t, []string{"start:q", "data:df", "abort", "end"}, h.events)
	assert.Equal(t, int64(4), res.DataBytes)
}

func TestReceiveJobPeerClosesMidTransfer(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		events []string
	}{
		{
			name:   "mid control file",
			input:  "\x02q\n\x0210 cfA001h\nHhost",
			events: []string{"start:q", "control:cfA001h", "end"},
		},
		{
			name:   "mid data file",
			input:  "\x02q\n\x03100 dfA001h\nsome data",
			events: []string{"start:q", "data:dfA001h", "end"},
		},
		{
			name:   "between files",
			input:  "\x02q\n\x026 cfA001h\nHhost\n\x00",
			events: []string{"start:q", "control:cfA001h", "end"},
		},
		{
			name:   "mid descriptor",
			input:  "\x02q\n\x0310 dfA",
			events: []string{"start:q", "end"},
		},
		{
			name:   "right after start",
			input:  "\x02q\n",
			events: []string{"start:q", "end"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecorder()
			res, _, err := dispatch(t, h, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.events, h.events)
			assert.Equal(t, JobEnded, res.JobState)
		})
	}
}

func TestReceiveJobProtocolErrorsAbort(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
		acks  int
	}{
		{"unknown sub-command", "\x02q\n\x09", lpd.ErrUnknownSubCommand, 1},
		{"descriptor with one token", "\x02q\n\x02cfA001h\n", lpd.ErrInvalidFileDescriptor, 1},
		{"descriptor with three tokens", "\x02q\n\x034 df x\n", lpd.ErrInvalidFileDescriptor, 1},
		{"non numeric length", "\x02q\n\x03four df\n", lpd.ErrInvalidFileLength, 1},
		{"negative data length", "\x02q\n\x03-1 df\n", lpd.ErrInvalidFileLength, 1},
		{"empty control file", "\x02q\n\x020 cf\n", lpd.ErrInvalidFileLength, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecorder()
			res, out, err := dispatch(t, h, tt.input)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, acks(tt.acks), out)
			assert.Equal(t, "abort", h.events[len(h.events)-1])
			assert.NotContains(t, h.events, "end")
			assert.Equal(t, JobAborted, res.JobState)
		})
	}
}

func TestReceiveJobHandlerErrorAborts(t *testing.T) {
	h := newRecorder()
	h.failOp = "data"
	res, out, err := dispatch(t, h, "\x02q\n\x034 df\nABCD\x00")

	var herr *lpd.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ReceiveDataFile", herr.Op)
	assert.Equal(t, acks(2), out)
	assert.Equal(t, []string{"start:q", "data:df", "abort"}, h.events)
	assert.Equal(t, JobAborted, res.JobState)
}

func TestReceiveJobHandlerStreamErrorAborts(t *testing.T) {
	// The handler's own backend failed with an error that looks like a
	// closed stream, while the client is still connected and sending.
	h := newRecorder()
	h.failOp = "data"
	h.failErr = fmt.Errorf("upload to backend: %w", io.ErrUnexpectedEOF)
	res, out, err := dispatch(t, h, "\x02q\n\x034 df\nABCD\x00\x034 d2\nEFGH\x00")

	var herr *lpd.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ReceiveDataFile", herr.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []string{"start:q", "data:df", "abort"}, h.events)
	assert.NotContains(t, h.events, "end")
	assert.Equal(t, JobAborted, res.JobState)
	assert.Equal(t, acks(2), out)
	assert.Equal(t, int64(4), res.DataBytes)
}

func TestReceiveJobHandlerErrorAfterPeerLeft(t *testing.T) {
	h := newRecorder()
	h.failOp = "data"
	h.failErr = syscall.ECONNRESET
	res, _, err := dispatch(t, h, "\x02q\n\x03100 df\nABCD")
	require.NoError(t, err)
	assert.Equal(t, []string{"start:q", "data:df", "end"}, h.events)
	assert.Equal(t, JobEnded, res.JobState)
	assert.Equal(t, int64(4), res.DataBytes)
}

func TestReceiveJobAbortErrorIsNotPeerGone(t *testing.T) {
	h := newRecorder()
	h.failOp = "abort"
	h.failErr = syscall.EPIPE
	res, _, err := dispatch(t, h, "\x02q\n\x01")

	var herr *lpd.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "AbortPrinterJob", herr.Op)
	assert.NotContains(t, h.events, "end")
	assert.Equal(t, JobAborted, res.JobState)
}

func TestReceiveJobEndError(t *testing.T) {
	h := newRecorder()
	h.failOp = "end"
	_, _, err := dispatch(t, h, "\x02q\n")
	var herr *lpd.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "EndPrinterJob", herr.Op)
}

func TestParseFileDescriptor(t *testing.T) {
	length, name, err := ParseFileDescriptor("0000000383 cfA963SYSB", lpd.ControlFile)
	require.NoError(t, err)
	assert.Equal(t, int64(383), length)
	assert.Equal(t, "cfA963SYSB", name)

	length, _, err = ParseFileDescriptor("0 dfA", lpd.DataFile)
	require.NoError(t, err)
	assert.Zero(t, length)

	_, _, err = ParseFileDescriptor("99999999999999999999 df", lpd.DataFile)
	assert.ErrorIs(t, err, lpd.ErrInvalidFileLength)
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "in-progress", JobInProgress.String())
	assert.Equal(t, "aborted", JobAborted.String())
}

// failingWriter makes every acknowledgement fail like a closed socket.
type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestReceiveJobAckWriteFailure(t *testing.T) {
	h := newRecorder()
	factory := lpd.HandlerFactoryFunc(func() lpd.Handler { return h })
	res, err := Dispatch(context.Background(), factory, reader("\x02q\n\x034 df\nABCD\x00"), failingWriter{err: io.ErrClosedPipe})

	// io.ErrClosedPipe is not a peer-gone error, so the job is aborted.
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, JobAborted, res.JobState)
	assert.Equal(t, []string{"start:q", "abort"}, h.events)

	h = newRecorder()
	res, err = Dispatch(context.Background(), factory, reader("\x02q\n\x034 df\nABCD\x00"), failingWriter{err: syscall.EPIPE})
	require.NoError(t, err)
	assert.Equal(t, JobEnded, res.JobState)
	assert.Equal(t, []string{"start:q", "end"}, h.events)
}
