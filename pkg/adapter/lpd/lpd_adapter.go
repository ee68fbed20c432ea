package lpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/internal/ratelimiter"
	"github.com/marmos91/dittolpd/pkg/lpd"
	"github.com/marmos91/dittolpd/pkg/metrics"
)

// State is the lifecycle position of an LPDAdapter.
type State int32

const (
	StateCreated State = iota
	StateBound
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrServerStopped is returned when Startup or Run is called after shutdown.
var ErrServerStopped = errors.New("lpd: server stopped")

// pollInterval is how often StopWithTimeout checks IsRunning.
const pollInterval = 100 * time.Millisecond

// LPDAdapter implements the adapter.Adapter interface for the RFC1179 line
// printer daemon protocol.
//
// Architecture:
// One goroutine runs the accept loop. Every accepted connection becomes a
// task for a fixed-size worker pool; a worker serves the connection from the
// command byte to the socket close. A handler obtained from the
// HandlerFactory processes the decoded requests.
//
// Lifecycle:
//
//	Created --Startup--> Bound --Run--> Running --Shutdown--> Stopped
//
// Shutdown flow:
//  1. Shutdown() (or context cancellation in Serve) closes the listener
//  2. The accept loop exits and the worker pool stops taking tasks
//  3. Queued and in-flight connections are served to completion
//  4. Serve waits up to ShutdownTimeout for the workers, then cancels the
//     connection context and reports the connections still active
//
// Workers are never interrupted mid-read: a connection stuck on a silent
// client ends through its read timeout.
//
// Thread safety:
// All methods are safe for concurrent use.
type LPDAdapter struct {
	// config holds the server configuration (port, pool size, timeouts)
	config LPDConfig

	// factory produces one handler per connection
	factory lpd.HandlerFactory

	// metrics provides optional Prometheus metrics collection
	metrics metrics.LPDMetrics

	// limiter throttles accepted connections; nil when unlimited
	limiter *ratelimiter.RateLimiter

	// mu guards listener and pool
	mu       sync.Mutex
	listener net.Listener
	pool     *workerPool

	state atomic.Int32

	// shutdown is closed once Shutdown has been requested
	shutdownOnce sync.Once
	shutdown     chan struct{}

	// runDone is closed when Run returns
	runDone     chan struct{}
	runDoneOnce sync.Once

	// connCount is the number of connections being served by a worker
	connCount atomic.Int32

	// connCtx is passed to every handler. It is cancelled only when the
	// drain deadline expires.
	connCtx     context.Context
	cancelConns context.CancelFunc
}

// LPDConfig holds configuration parameters for the LPD server.
//
// Default values (applied by New if zero):
//   - Port: 515
//   - MaxWorkers: 10
//   - MaxPending: 0 (unbounded queue)
//   - ReadTimeout: 5m
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 0 (disabled)
type LPDConfig struct {
	// Enabled controls whether the LPD adapter is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the host to listen on. Empty means all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port to listen on. A negative value binds an ephemeral
	// port, which Port() reports after Startup.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// MaxWorkers is the number of connections served concurrently.
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" validate:"min=0"`

	// MaxPending bounds the connections waiting for a worker. Connections
	// beyond it are closed immediately. 0 means unbounded.
	MaxPending int `mapstructure:"max_pending" yaml:"max_pending" validate:"min=0"`

	// ReadTimeout bounds every single read from a client. Print jobs are
	// streamed, so this limits client stalls rather than job size.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds every single write to a client.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is how long Serve waits for in-flight connections.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval is the interval of the periodic metrics log line.
	// 0 disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0"`

	// RateLimit throttles new connections.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures connection throttling. A zero rate disables it.
type RateLimitConfig struct {
	ConnectionsPerSecond uint `mapstructure:"connections_per_second" yaml:"connections_per_second"`
	Burst                uint `mapstructure:"burst" yaml:"burst"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *LPDConfig) applyDefaults() {
	// Enabled is defaulted in pkg/config so an explicit false survives.
	if c.Port == 0 {
		c.Port = lpd.DefaultPort
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 10
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *LPDConfig) validate() error {
	if c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("invalid MaxWorkers %d: must be > 0", c.MaxWorkers)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("invalid MaxPending %d: must be >= 0", c.MaxPending)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("invalid timeouts read=%v write=%v: must be >= 0", c.ReadTimeout, c.WriteTimeout)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be >= 0", c.ShutdownTimeout)
	}
	return nil
}

func (c *LPDConfig) address() string {
	port := c.Port
	if port < 0 {
		port = 0
	}
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(port))
}

// New creates a new LPDAdapter in the Created state.
//
// Zero values in config are replaced with defaults. A nil lpdMetrics
// disables metrics.
//
// Panics if config validation fails or factory is nil (programmer errors).
func New(config LPDConfig, factory lpd.HandlerFactory, lpdMetrics metrics.LPDMetrics) *LPDAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid LPD config: %v", err))
	}
	if factory == nil {
		panic("LPD adapter requires a handler factory")
	}
	if lpdMetrics == nil {
		lpdMetrics = metrics.NewNoopLPDMetrics()
	}

	var limiter *ratelimiter.RateLimiter
	if config.RateLimit.ConnectionsPerSecond > 0 {
		limiter = ratelimiter.New(config.RateLimit.ConnectionsPerSecond, config.RateLimit.Burst)
		logger.Debug("LPD connection rate limit: %d/s (burst %d)",
			config.RateLimit.ConnectionsPerSecond, config.RateLimit.Burst)
	}

	connCtx, cancelConns := context.WithCancel(context.Background())

	return &LPDAdapter{
		config:      config,
		factory:     factory,
		metrics:     lpdMetrics,
		limiter:     limiter,
		shutdown:    make(chan struct{}),
		runDone:     make(chan struct{}),
		connCtx:     connCtx,
		cancelConns: cancelConns,
	}
}

// State returns the current lifecycle state.
func (s *LPDAdapter) State() State {
	return State(s.state.Load())
}

// Startup binds the listening socket. It is idempotent.
//
// Returns a *lpd.BindError if the address cannot be bound and
// ErrServerStopped after Shutdown.
func (s *LPDAdapter) Startup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	if s.isShutdown() {
		return ErrServerStopped
	}

	addr := s.config.address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &lpd.BindError{Addr: addr, Err: err}
	}

	s.listener = ln
	s.pool = newWorkerPool(s.config.MaxWorkers, s.config.MaxPending)
	s.state.CompareAndSwap(int32(StateCreated), int32(StateBound))

	logger.Info("LPD server listening on %s", ln.Addr())
	logger.Debug("LPD config: max_workers=%d max_pending=%d read_timeout=%v write_timeout=%v",
		s.config.MaxWorkers, s.config.MaxPending, s.config.ReadTimeout, s.config.WriteTimeout)
	return nil
}

// Run binds if necessary and accepts connections until Shutdown. Every
// connection is handed to the worker pool.
//
// Returns nil after a requested shutdown, the Startup error if binding
// fails, or the listener error if accepting fails permanently.
func (s *LPDAdapter) Run() error {
	if err := s.Startup(); err != nil {
		return err
	}
	if !s.state.CompareAndSwap(int32(StateBound), int32(StateRunning)) {
		if s.State() == StateRunning {
			return errors.New("lpd: server already running")
		}
		return ErrServerStopped
	}

	s.mu.Lock()
	ln, pool := s.listener, s.pool
	s.mu.Unlock()

	defer func() {
		s.state.Store(int32(StateStopped))
		_ = ln.Close()
		pool.Shutdown()
		s.runDoneOnce.Do(func() { close(s.runDone) })
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics()
	}

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isShutdown() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("LPD listener closed: %w", err)
			}

			// Transient failures (e.g. EMFILE) are retried with backoff.
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			logger.Warn("Error accepting LPD connection: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-s.shutdown:
				return nil
			}
			continue
		}
		backoff = 0

		s.dispatch(conn, pool)
	}
}

// dispatch queues one accepted connection.
func (s *LPDAdapter) dispatch(conn net.Conn, pool *workerPool) {
	if s.limiter != nil && !s.limiter.Allow() {
		logger.Warn("LPD connection from %s rejected: rate limit exceeded", clientAddr(conn))
		s.metrics.RecordConnectionRejected("rate_limited")
		_ = conn.Close()
		return
	}

	s.metrics.RecordConnectionAccepted()
	c := NewLPDConnection(s, conn)
	if !pool.Submit(func() { s.serveConn(c) }) {
		logger.Warn("LPD connection from %s rejected: %d connection(s) already waiting",
			clientAddr(conn), pool.Pending())
		s.metrics.RecordConnectionRejected("queue_full")
		s.metrics.RecordConnectionClosed()
		_ = conn.Close()
		return
	}
	s.metrics.SetQueuedConnections(pool.Pending())
}

func (s *LPDAdapter) serveConn(c *LPDConnection) {
	active := s.connCount.Add(1)
	s.metrics.SetActiveConnections(active)
	s.metrics.SetQueuedConnections(s.pending())

	defer func() {
		active := s.connCount.Add(-1)
		s.metrics.SetActiveConnections(active)
		s.metrics.RecordConnectionClosed()
	}()

	c.Serve(s.connCtx)
}

// IsRunning reports whether the accept loop is live.
func (s *LPDAdapter) IsRunning() bool {
	return s.State() == StateRunning
}

// Shutdown requests the server to stop: the listener is closed and the
// worker pool stops taking connections. It does not wait for in-flight
// connections. Safe to call repeatedly and before Startup.
func (s *LPDAdapter) Shutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("LPD shutdown initiated")
		close(s.shutdown)

		s.mu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Error closing LPD listener: %v", err)
			}
		}
		if s.pool != nil {
			s.pool.Shutdown()
		}
		s.mu.Unlock()

		// A server that never ran has no accept loop to mark it stopped.
		for {
			st := s.state.Load()
			if st == int32(StateRunning) || st == int32(StateStopped) {
				break
			}
			if s.state.CompareAndSwap(st, int32(StateStopped)) {
				break
			}
		}
	})
}

// StopWithTimeout calls Shutdown and waits until the accept loop has exited,
// polling every 100ms for at most timeout. Whatever is left of timeout is
// granted to in-flight connections.
//
// Returns true if the server stopped accepting within timeout.
func (s *LPDAdapter) StopWithTimeout(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	s.Shutdown()

	for s.IsRunning() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Warn("LPD server still running after %v", timeout)
			return false
		}
		time.Sleep(min(pollInterval, remaining))
	}

	if remaining := time.Until(deadline); remaining > 0 {
		if !s.awaitWorkers(remaining) {
			logger.Warn("LPD stop: %d connection(s) still active after %v", s.connCount.Load(), timeout)
		}
	}
	return true
}

// Serve implements adapter.Adapter: it runs the server until ctx is
// cancelled, then waits up to ShutdownTimeout for in-flight connections.
//
// Returns:
//   - nil on graceful shutdown
//   - *lpd.BindError if the port cannot be bound
//   - error if connections were still active after ShutdownTimeout
func (s *LPDAdapter) Serve(ctx context.Context) error {
	if err := s.Startup(); err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("LPD shutdown signal received: %v", ctx.Err())
			s.Shutdown()
		case <-s.runDone:
		}
	}()

	err := s.Run()
	s.runDoneOnce.Do(func() { close(s.runDone) })
	if err != nil && !(errors.Is(err, ErrServerStopped) && s.isShutdown()) {
		s.Shutdown()
		return err
	}
	return s.gracefulShutdown()
}

// gracefulShutdown waits for queued and active connections to finish.
func (s *LPDAdapter) gracefulShutdown() error {
	logger.Info("LPD graceful shutdown: waiting for %d active and %d queued connection(s) (timeout: %v)",
		s.connCount.Load(), s.pending(), s.config.ShutdownTimeout)

	if s.awaitWorkers(s.config.ShutdownTimeout) {
		logger.Info("LPD graceful shutdown complete: all connections closed")
		return nil
	}

	remaining := s.connCount.Load()
	s.cancelConns()
	logger.Warn("LPD shutdown timeout exceeded: %d connection(s) still active after %v",
		remaining, s.config.ShutdownTimeout)
	return fmt.Errorf("LPD shutdown timeout: %d connection(s) still active", remaining)
}

// Stop implements adapter.Adapter: Shutdown plus waiting for in-flight
// connections until ctx is done.
func (s *LPDAdapter) Stop(ctx context.Context) error {
	s.Shutdown()

	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return nil
	}

	select {
	case <-pool.Done():
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("LPD shutdown context cancelled: %d connection(s) still active: %v", remaining, ctx.Err())
		return ctx.Err()
	}
}

func (s *LPDAdapter) awaitWorkers(timeout time.Duration) bool {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return true
	}
	return pool.AwaitTermination(timeout)
}

func (s *LPDAdapter) pending() int {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return 0
	}
	return pool.Pending()
}

func (s *LPDAdapter) isShutdown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// logMetrics periodically logs connection counts until Run returns.
func (s *LPDAdapter) logMetrics() {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.runDone:
			return
		case <-ticker.C:
			logger.Info("LPD metrics: active_connections=%d queued_connections=%d",
				s.connCount.Load(), s.pending())
		}
	}
}

// GetActiveConnections returns the number of connections being served.
func (s *LPDAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound TCP port once listening, the configured port before.
// A configured 0 is the default port 515; only a negative port is ephemeral.
func (s *LPDAdapter) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Addr returns the listener address, or nil before Startup.
func (s *LPDAdapter) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Protocol returns "LPD".
func (s *LPDAdapter) Protocol() string {
	return "LPD"
}
