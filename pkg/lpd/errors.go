package lpd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrorKind classifies protocol violations.
type ErrorKind int

const (
	// KindMissingQueueName: a command line carried no queue name.
	KindMissingQueueName ErrorKind = iota + 1
	// KindUnexpectedEndOfStream: the stream ended before a line feed.
	KindUnexpectedEndOfStream
	// KindShortRead: the stream ended before a declared number of bytes.
	KindShortRead
	// KindUnknownCommand: the first byte was not a daemon command.
	KindUnknownCommand
	// KindUnknownSubCommand: a receive-job sub-command byte was not 1..3.
	KindUnknownSubCommand
	// KindInvalidFileDescriptor: a descriptor line did not have two tokens.
	KindInvalidFileDescriptor
	// KindInvalidFileLength: a descriptor length was unparsable or out of range.
	KindInvalidFileLength
	// KindInvalidRemoveRequest: a remove request had fewer than two tokens.
	KindInvalidRemoveRequest
	// KindLineTooLong: no line feed within the maximum line length.
	KindLineTooLong
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingQueueName:
		return "missing queue name"
	case KindUnexpectedEndOfStream:
		return "unexpected end of stream"
	case KindShortRead:
		return "short read"
	case KindUnknownCommand:
		return "unknown command"
	case KindUnknownSubCommand:
		return "unknown sub-command"
	case KindInvalidFileDescriptor:
		return "invalid file descriptor"
	case KindInvalidFileLength:
		return "invalid file length"
	case KindInvalidRemoveRequest:
		return "invalid remove request"
	case KindLineTooLong:
		return "line too long"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ProtocolError reports input that violates RFC1179.
type ProtocolError struct {
	Kind ErrorKind
	// Code is the offending command byte for the unknown (sub-)command kinds.
	Code byte
	// Detail carries the offending input, e.g. the raw descriptor line.
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "lpd: " + e.Kind.String()
	switch {
	case e.Kind == KindUnknownCommand || e.Kind == KindUnknownSubCommand:
		msg += fmt.Sprintf(" 0x%02x", e.Code)
	case e.Detail != "":
		msg += fmt.Sprintf(" %q", e.Detail)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is matches another *ProtocolError of the same kind, so the sentinels below
// work with errors.Is.
func (e *ProtocolError) Is(target error) bool {
	var t *ProtocolError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMissingQueueName      = &ProtocolError{Kind: KindMissingQueueName}
	ErrUnexpectedEndOfStream = &ProtocolError{Kind: KindUnexpectedEndOfStream}
	ErrShortRead             = &ProtocolError{Kind: KindShortRead}
	ErrUnknownCommand        = &ProtocolError{Kind: KindUnknownCommand}
	ErrUnknownSubCommand     = &ProtocolError{Kind: KindUnknownSubCommand}
	ErrInvalidFileDescriptor = &ProtocolError{Kind: KindInvalidFileDescriptor}
	ErrInvalidFileLength     = &ProtocolError{Kind: KindInvalidFileLength}
	ErrInvalidRemoveRequest  = &ProtocolError{Kind: KindInvalidRemoveRequest}
	ErrLineTooLong           = &ProtocolError{Kind: KindLineTooLong}
)

// ErrHandlerUnavailable is returned when the HandlerFactory produced nil.
var ErrHandlerUnavailable = errors.New("lpd: handler factory returned no handler")

// HandlerError wraps an error returned by a Handler callback.
type HandlerError struct {
	Op  string
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("lpd: handler %s: %v", e.Op, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// BindError is returned when the server cannot listen on its address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("lpd: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// IsEndOfStream reports whether err means the peer went away: a clean or
// unexpected EOF, a truncated line or payload, or a reset socket.
func IsEndOfStream(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, ErrUnexpectedEndOfStream),
		errors.Is(err, ErrShortRead):
		return true
	}
	return false
}
