// Package client implements the client side of the line printer daemon
// protocol: submitting jobs, listing queues and removing jobs.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lpdproto "github.com/marmos91/dittolpd/internal/protocol/lpd"
	"github.com/marmos91/dittolpd/pkg/lpd"
)

const (
	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 10 * time.Second

	// DefaultTimeout bounds every exchange without a context deadline.
	DefaultTimeout = 60 * time.Second
)

// AckError reports a negative acknowledgement from the daemon.
type AckError struct {
	// Stage is "job", "control file" or "data file".
	Stage string
	// Name is the refused file, empty for the job itself.
	Name string
	// Code is the acknowledgement byte received.
	Code byte
}

func (e *AckError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("lpd: daemon refused %s (ack 0x%02x)", e.Stage, e.Code)
	}
	return fmt.Sprintf("lpd: daemon refused %s %s (ack 0x%02x)", e.Stage, e.Name, e.Code)
}

// Config configures a Client.
type Config struct {
	// Address of the daemon, host:port. A missing port means 515.
	Address string

	// DialTimeout bounds connection establishment (default 10s).
	DialTimeout time.Duration

	// Timeout bounds each exchange when ctx carries no deadline (default 60s).
	Timeout time.Duration

	// Host names this machine in control files (default os.Hostname).
	Host string

	// User owns submitted jobs (default $USER).
	User string
}

// Client talks to one LPD server. A connection carries exactly one command,
// so every call dials anew. Safe for concurrent use.
type Client struct {
	config     Config
	nextNumber atomic.Int64
}

// New creates a client, filling defaults.
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("client: address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		cfg.Address = net.JoinHostPort(cfg.Address, strconv.Itoa(lpd.DefaultPort))
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Host == "" {
		cfg.Host, _ = os.Hostname()
	}
	cfg.Host = sanitizeHost(cfg.Host)
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if cfg.User == "" {
		cfg.User = "nobody"
	}

	c := &Client{config: cfg}
	c.nextNumber.Store(time.Now().UnixNano() % 1000)
	return c, nil
}

// Address returns the daemon address.
func (c *Client) Address() string {
	return c.config.Address
}

// PrintJobs sends command 01: start printing the jobs of queue.
func (c *Client) PrintJobs(ctx context.Context, queue string) error {
	return c.oneShot(ctx, lpd.CmdPrintJobs, queue, nil)
}

// RemoveJobs sends command 05 on behalf of agent. ids name job numbers or
// owners; none removes the agent's jobs.
func (c *Client) RemoveJobs(ctx context.Context, queue, agent string, ids ...string) error {
	if agent == "" {
		agent = c.config.User
	}
	return c.oneShot(ctx, lpd.CmdRemoveJobs, queue, append([]string{agent}, ids...))
}

// QueueState sends command 03 (or 04 when long) and returns the listing.
func (c *Client) QueueState(ctx context.Context, queue string, long bool, ids ...string) (string, error) {
	cmd := lpd.CmdQueueStateShort
	if long {
		cmd = lpd.CmdQueueStateLong
	}

	var text string
	err := c.exchange(ctx, func(conn net.Conn) error {
		if err := writeCommand(conn, cmd, queue, ids); err != nil {
			return err
		}
		if err := closeWrite(conn); err != nil {
			return err
		}
		raw, err := io.ReadAll(conn)
		if err != nil {
			return fmt.Errorf("read queue state: %w", err)
		}
		text = lpdproto.DecodeLatin1(raw)
		return nil
	})
	return text, err
}

// oneShot sends a command that gets no reply and waits for the daemon to
// close the connection.
func (c *Client) oneShot(ctx context.Context, cmd lpd.Command, queue string, operands []string) error {
	return c.exchange(ctx, func(conn net.Conn) error {
		if err := writeCommand(conn, cmd, queue, operands); err != nil {
			return err
		}
		if err := closeWrite(conn); err != nil {
			return err
		}
		return awaitClose(conn)
	})
}

// exchange dials, applies the deadline and runs fn on the connection.
func (c *Client) exchange(ctx context.Context, fn func(net.Conn) error) error {
	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}
	defer func() { _ = conn.Close() }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := fn(conn); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}

// writeCommand writes "<code><queue> <operands...>\n".
func writeCommand(w io.Writer, cmd lpd.Command, queue string, operands []string) error {
	if queue == "" || strings.ContainsAny(queue, " \t\n") {
		return fmt.Errorf("invalid queue name %q", queue)
	}
	line := queue
	if len(operands) > 0 {
		line += " " + strings.Join(operands, " ")
	}
	encoded, err := lpdproto.EncodeLatin1(line + "\n")
	if err != nil {
		return fmt.Errorf("encode %s request: %w", cmd, err)
	}
	if _, err := w.Write(append([]byte{byte(cmd)}, encoded...)); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	return nil
}

// readAck reads one acknowledgement byte.
func readAck(r io.Reader, stage, name string) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("lpd: connection closed awaiting %s acknowledgement", stage)
		}
		return fmt.Errorf("read %s acknowledgement: %w", stage, err)
	}
	if b[0] != lpd.AckPositive {
		return &AckError{Stage: stage, Name: name, Code: b[0]}
	}
	return nil
}

// closeWrite half-closes TCP connections so the daemon sees end of stream.
func closeWrite(conn net.Conn) error {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return fmt.Errorf("close write side: %w", err)
		}
	}
	return nil
}

// awaitClose reads until the daemon closes the connection.
func awaitClose(conn net.Conn) error {
	if _, err := io.Copy(io.Discard, bufio.NewReader(conn)); err != nil {
		return fmt.Errorf("await close: %w", err)
	}
	return nil
}

// sanitizeHost keeps a host name usable inside control file names.
func sanitizeHost(host string) string {
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	host = strings.Map(func(r rune) rune {
		if r <= ' ' || r > '~' {
			return -1
		}
		return r
	}, host)
	if host == "" {
		return "localhost"
	}
	return host
}

// jobNumber returns number when set, else the next local job number.
func (c *Client) jobNumber(number int) int {
	if number > 0 {
		return number % 1000
	}
	return int(c.nextNumber.Add(1) % 1000)
}
