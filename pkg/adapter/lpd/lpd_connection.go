package lpd

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/marmos91/dittolpd/internal/logger"
	lpdproto "github.com/marmos91/dittolpd/internal/protocol/lpd"
	"github.com/marmos91/dittolpd/pkg/lpd"
)

// LPDConnection serves exactly one command on one client connection.
type LPDConnection struct {
	server *LPDAdapter
	conn   net.Conn
}

func NewLPDConnection(server *LPDAdapter, conn net.Conn) *LPDConnection {
	return &LPDConnection{
		server: server,
		conn:   conn,
	}
}

// Serve dispatches the connection's command and closes the socket on every
// exit path, including panics in the handler.
func (c *LPDConnection) Serve(ctx context.Context) {
	client := clientAddr(c.conn)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in LPD connection handler from %s: %v", client, r)
		}
		_ = c.conn.Close()
	}()

	logger.Debug("LPD connection from %s", client)
	ctx = lpd.WithPeer(ctx, client)

	stream := &deadlineConn{
		Conn:         c.conn,
		readTimeout:  c.server.config.ReadTimeout,
		writeTimeout: c.server.config.WriteTimeout,
	}

	start := time.Now()
	res, err := lpdproto.Dispatch(ctx, c.server.factory, bufio.NewReader(stream), stream)
	c.record(res, time.Since(start), err)

	switch {
	case err == nil && res == nil:
		logger.Debug("LPD connection from %s closed before a command", client)
	case err == nil:
		logger.Debug("LPD %s from %s served (queue=%s acks=%d nacks=%d)",
			res.Command, client, res.Queue, res.Acks, res.Nacks)
	case errors.Is(err, os.ErrDeadlineExceeded):
		logger.Error("LPD connection from %s timed out: %v", client, err)
	default:
		logger.Error("LPD connection from %s failed: %v", client, err)
	}
}

func (c *LPDConnection) record(res *lpdproto.Result, d time.Duration, err error) {
	if res == nil {
		return
	}
	m := c.server.metrics
	m.RecordCommand(res.Command.String(), d, err)
	m.RecordBytesReceived(lpd.ControlFile.String(), res.ControlBytes)
	m.RecordBytesReceived(lpd.DataFile.String(), res.DataBytes)
	m.RecordAcks(res.Acks, res.Nacks)
}

func clientAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// deadlineConn refreshes the read or write deadline before every I/O call.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if d.readTimeout > 0 {
		if err := d.Conn.SetReadDeadline(time.Now().Add(d.readTimeout)); err != nil {
			return 0, err
		}
	}
	return d.Conn.Read(p)
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if d.writeTimeout > 0 {
		if err := d.Conn.SetWriteDeadline(time.Now().Add(d.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return d.Conn.Write(p)
}
