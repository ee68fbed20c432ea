// Package lpd implements the RFC1179 wire protocol: line and byte codecs,
// the command dispatcher and the receive-job sub-protocol.
package lpd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/marmos91/dittolpd/pkg/lpd"
)

const lineFeed = '\n'

// MaxLineLength bounds a single command or descriptor line.
const MaxLineLength = 64 * 1024

// ReadLine reads bytes up to the next line feed and returns them decoded as
// ISO-8859-1 with surrounding whitespace and control characters removed.
// A stream that ends before the line feed yields ErrUnexpectedEndOfStream.
func ReadLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice(lineFeed)
		line = append(line, frag...)
		if len(line) > MaxLineLength {
			return "", &lpd.ProtocolError{
				Kind:   lpd.KindLineTooLong,
				Detail: fmt.Sprintf("more than %d bytes", MaxLineLength),
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return "", &lpd.ProtocolError{Kind: lpd.KindUnexpectedEndOfStream, Detail: DecodeLatin1(line)}
		}
		return "", err
	}

	return Trim(DecodeLatin1(line[:len(line)-1])), nil
}

// Trim removes leading and trailing runes at or below U+0020.
func Trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
}

// ReadCode reads one command byte. ok is false when the peer has closed
// the stream.
func ReadCode(r io.ByteReader) (code byte, ok bool, err error) {
	code, err = r.ReadByte()
	if err != nil {
		if lpd.IsEndOfStream(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return code, true, nil
}

// ReadExact reads exactly n bytes from r.
func ReadExact(r io.Reader, n int64) ([]byte, error) {
	if n < 0 {
		return nil, &lpd.ProtocolError{Kind: lpd.KindInvalidFileLength, Detail: fmt.Sprint(n)}
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return buf[:read], &lpd.ProtocolError{
				Kind:   lpd.KindShortRead,
				Detail: fmt.Sprintf("got %d of %d bytes", read, n),
				Err:    err,
			}
		}
		return buf[:read], err
	}
	return buf, nil
}

// WriteAck writes a positive (0x00) or negative (0x01) acknowledgement.
func WriteAck(w io.Writer, positive bool) error {
	b := lpd.AckNegative
	if positive {
		b = lpd.AckPositive
	}
	_, err := w.Write([]byte{b})
	return err
}

// WriteText writes s encoded as ISO-8859-1. Runes outside the charset are
// replaced with the encoding's substitute byte.
func WriteText(w io.Writer, s string) error {
	if s == "" {
		return nil
	}
	b, err := EncodeLatin1(s)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// DecodeLatin1 maps every byte to the rune of the same value.
func DecodeLatin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO-8859-1 assigns every byte; the decoder cannot fail.
		return string(b)
	}
	return string(s)
}

// EncodeLatin1 is the inverse of DecodeLatin1.
func EncodeLatin1(s string) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode latin-1: %w", err)
	}
	return b, nil
}
