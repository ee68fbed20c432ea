package lpd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittolpd/pkg/lpd"
)

type receivedFile struct {
	kind   lpd.FileKind
	name   string
	length int64
	data   []byte
}

// recorder is an lpd.Handler that records every callback.
type recorder struct {
	events []string

	refuse     bool
	rejectAll  bool
	skipRead   bool
	failOp     string
	failErr    error
	stateText  string
	files      []receivedFile
	agent      string
	ids        []string
	stateQueue string
}

func newRecorder() *recorder {
	return &recorder{failErr: errors.New("boom")}
}

func (r *recorder) fail(op string) error {
	if r.failOp == op {
		return r.failErr
	}
	return nil
}

func (r *recorder) PrintJobs(_ context.Context, queue string) error {
	r.events = append(r.events, "print:"+queue)
	return r.fail("print")
}

func (r *recorder) StartPrinterJob(_ context.Context, queue string) (bool, error) {
	r.events = append(r.events, "start:"+queue)
	return !r.refuse, r.fail("start")
}

func (r *recorder) receive(kind lpd.FileKind, rd io.Reader, length int64, name string) (bool, error) {
	r.events = append(r.events, kind.String()+":"+name)
	if err := r.fail(kind.String()); err != nil {
		return false, err
	}
	if r.skipRead {
		return true, nil
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return false, err
	}
	r.files = append(r.files, receivedFile{kind: kind, name: name, length: length, data: data})
	return !r.rejectAll && int64(len(data)) == length, nil
}

func (r *recorder) ReceiveControlFile(_ context.Context, rd io.Reader, length int64, name string) (bool, error) {
	return r.receive(lpd.ControlFile, rd, length, name)
}

func (r *recorder) ReceiveDataFile(_ context.Context, rd io.Reader, length int64, name string) (bool, error) {
	return r.receive(lpd.DataFile, rd, length, name)
}

func (r *recorder) AbortPrinterJob(context.Context) error {
	r.events = append(r.events, "abort")
	return r.fail("abort")
}

func (r *recorder) EndPrinterJob(context.Context) error {
	r.events = append(r.events, "end")
	return r.fail("end")
}

func (r *recorder) RemoveJobs(_ context.Context, queue, agent string, ids []string) error {
	r.events = append(r.events, "remove:"+queue)
	r.agent, r.ids = agent, ids
	return r.fail("remove")
}

func (r *recorder) SendQueueStateShort(_ context.Context, queue string, ids []string) (string, error) {
	r.events = append(r.events, "short:"+queue)
	r.stateQueue, r.ids = queue, ids
	return r.stateText, r.fail("short")
}

func (r *recorder) SendQueueStateLong(_ context.Context, queue string, ids []string) (string, error) {
	r.events = append(r.events, "long:"+queue)
	r.stateQueue, r.ids = queue, ids
	return r.stateText, r.fail("long")
}

func dispatch(t *testing.T, h lpd.Handler, input string) (*Result, []byte, error) {
	t.Helper()
	var out bytes.Buffer
	factory := lpd.HandlerFactoryFunc(func() lpd.Handler { return h })
	res, err := Dispatch(context.Background(), factory, bufio.NewReader(strings.NewReader(input)), &out)
	return res, out.Bytes(), err
}

func TestDispatchEmptyStream(t *testing.T) {
	called := false
	factory := lpd.HandlerFactoryFunc(func() lpd.Handler { called = true; return newRecorder() })
	res, err := Dispatch(context.Background(), factory, reader(""), io.Discard)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.False(t, called)
}

func TestDispatchUnknownCommand(t *testing.T) {
	for _, code := range []byte{0x00, 0x06, 0x20, 0xff} {
		called := false
		factory := lpd.HandlerFactoryFunc(func() lpd.Handler { called = true; return newRecorder() })
		var out bytes.Buffer
		_, err := Dispatch(context.Background(), factory, reader(string([]byte{code})+"queue\n"), &out)

		var perr *lpd.ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, lpd.KindUnknownCommand, perr.Kind)
		assert.Equal(t, code, perr.Code)
		assert.False(t, called, "factory must not run for code 0x%02x", code)
		assert.Zero(t, out.Len())
	}
}

func TestDispatchNilHandler(t *testing.T) {
	factory := lpd.HandlerFactoryFunc(func() lpd.Handler { return nil })
	var out bytes.Buffer
	res, err := Dispatch(context.Background(), factory, reader("\x02my_queue\n"), &out)
	assert.ErrorIs(t, err, lpd.ErrHandlerUnavailable)
	assert.Equal(t, lpd.CmdReceivePrinterJob, res.Command)
	assert.Zero(t, out.Len())
}

func TestPrintJobs(t *testing.T) {
	h := newRecorder()
	res, out, err := dispatch(t, h, "\x01my_queue\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"print:my_queue"}, h.events)
	assert.Empty(t, out)
	assert.Equal(t, "my_queue", res.Queue)
}

func TestPrintJobsMissingQueue(t *testing.T) {
	h := newRecorder()
	_, _, err := dispatch(t, h, "\x01  \n")
	assert.ErrorIs(t, err, lpd.ErrMissingQueueName)
	assert.Empty(t, h.events)

	_, _, err = dispatch(t, h, "\x01my_queue")
	assert.ErrorIs(t, err, lpd.ErrUnexpectedEndOfStream)
}

func TestPrintJobsHandlerError(t *testing.T) {
	h := newRecorder()
	h.failOp = "print"
	_, _, err := dispatch(t, h, "\x01my_queue\n")

	var herr *lpd.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "PrintJobs", herr.Op)
	assert.ErrorIs(t, err, h.failErr)
}

func TestQueueStateShort(t *testing.T) {
	h := newRecorder()
	h.stateText = "this is a short list"
	_, out, err := dispatch(t, h, "\x03my_queue\n")
	require.NoError(t, err)
	assert.Equal(t, "this is a short list", string(out))
	assert.Equal(t, "my_queue", h.stateQueue)
	assert.NotNil(t, h.ids)
	assert.Empty(t, h.ids)
}

func TestQueueStateLongWithList(t *testing.T) {
	h := newRecorder()
	h.stateText = "this is a long list\n"
	_, out, err := dispatch(t, h, "\x04queue_abc 1 x\tabc\n")
	require.NoError(t, err)
	assert.Equal(t, "this is a long list\n", string(out))
	assert.Equal(t, "queue_abc", h.stateQueue)
	assert.Equal(t, []string{"1", "x", "abc"}, h.ids)
	assert.Equal(t, []string{"long:queue_abc"}, h.events)
}

func TestQueueStateEmptyText(t *testing.T) {
	h := newRecorder()
	_, out, err := dispatch(t, h, "\x03q\n")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQueueStateMissingQueue(t *testing.T) {
	for _, input := range []string{"\x03\n", "\x04 \t \n"} {
		h := newRecorder()
		_, out, err := dispatch(t, h, input)
		assert.ErrorIs(t, err, lpd.ErrMissingQueueName)
		assert.Empty(t, out)
		assert.Empty(t, h.events)
	}
}

func TestQueueStateHandlerErrorWritesNothing(t *testing.T) {
	h := newRecorder()
	h.failOp = "short"
	h.stateText = "partial"
	_, out, err := dispatch(t, h, "\x03q\n")
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestRemoveJobs(t *testing.T) {
	h := newRecorder()
	_, out, err := dispatch(t, h, "\x05my_queue root\n")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []string{"remove:my_queue"}, h.events)
	assert.Equal(t, "root", h.agent)
	assert.NotNil(t, h.ids)
	assert.Empty(t, h.ids)

	h = newRecorder()
	_, _, err = dispatch(t, h, "\x05queue_abc foo 1 x abc\n")
	require.NoError(t, err)
	assert.Equal(t, "foo", h.agent)
	assert.Equal(t, []string{"1", "x", "abc"}, h.ids)
}

func TestRemoveJobsInvalid(t *testing.T) {
	h := newRecorder()
	_, _, err := dispatch(t, h, "\x05my_queue\n")

	var perr *lpd.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, lpd.KindInvalidRemoveRequest, perr.Kind)
	assert.Equal(t, "my_queue", perr.Detail)
	assert.Empty(t, h.events)
}
