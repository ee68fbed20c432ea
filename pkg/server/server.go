package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/adapter"
)

// DefaultStopTimeout bounds the Stop call of every adapter during shutdown.
const DefaultStopTimeout = 30 * time.Second

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server: Serve already called")

// Server manages the lifecycle of the protocol adapters that share one
// spool: the LPD listener and the admin API.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each adapter, AddResource() for every
//     store or notifier to close after shutdown
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation or the first adapter failure stops all
//     adapters in reverse registration order, then closes resources in
//     reverse registration order
//
// Thread safety:
// Safe for concurrent use. AddAdapter must not be called after Serve.
//
// Example usage:
//
//	srv := server.New(server.Config{ShutdownTimeout: 30 * time.Second})
//	_ = srv.AddAdapter(lpdAdapter)
//	_ = srv.AddAdapter(apiServer)
//	srv.AddResource("job store", jobStore)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	stopTimeout time.Duration

	mu        sync.Mutex
	adapters  []adapter.Adapter
	resources []resource
	served    bool
}

// Config configures a Server.
type Config struct {
	// ShutdownTimeout bounds each adapter's Stop call (default 30s).
	ShutdownTimeout time.Duration
}

type resource struct {
	name   string
	closer io.Closer
}

// New creates a server with no adapters.
func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultStopTimeout
	}
	return &Server{
		stopTimeout: cfg.ShutdownTimeout,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a protocol adapter.
//
// Each adapter must implement a different protocol and listen on a
// different port. Port 0 (ephemeral) never conflicts.
//
// Returns:
//   - error if a is nil, Serve was already called, or a conflicts with a
//     registered adapter
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return errors.New("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// AddResource registers a resource closed once every adapter has stopped.
func (s *Server) AddResource(name string, c io.Closer) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resource{name: name, closer: c})
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]adapter.Adapter, len(s.adapters))
	copy(out, s.adapters)
	return out
}

// Serve starts all registered adapters and blocks until ctx is cancelled or
// an adapter fails.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by cancellation
//   - the failing adapter's error, wrapped with its protocol, otherwise
//   - ErrAlreadyServed on a second call
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	resources := make([]resource, len(s.resources))
	copy(resources, s.resources)
	s.mu.Unlock()

	defer closeResources(resources)

	logger.Info("Starting dittolpd with %d adapter(s)", len(adapters))

	// Adapters get their own context so a failing adapter can stop the rest.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()
			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(runCtx)
			switch {
			case err != nil && runCtx.Err() == nil:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			case err != nil && !errors.Is(err, context.Canceled):
				logger.Warn("%s adapter stopped with error: %v", protocol, err)
			case runCtx.Err() == nil:
				// Returned nil without being asked to stop.
				errChan <- adapterError{protocol: protocol, err: errors.New("stopped unexpectedly")}
			default:
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case failed := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters", failed.protocol, failed.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", failed.protocol, failed.err)
	}

	cancel()
	s.stopAll(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("dittolpd stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAll calls Stop on every adapter in reverse registration order.
func (s *Server) stopAll(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))
	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}

func closeResources(resources []resource) {
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		if err := r.closer.Close(); err != nil {
			logger.Error("Error closing %s: %v", r.name, err)
			continue
		}
		logger.Debug("Closed %s", r.name)
	}
}
