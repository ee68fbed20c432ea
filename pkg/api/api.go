// Package api serves the admin REST API of the spool over HTTP.
//
// Routes (JSON unless noted):
//
//	GET    /healthz
//	POST   /api/v1/auth/login
//	GET    /api/v1/queues
//	POST   /api/v1/queues/:queue/lock
//	POST   /api/v1/queues/:queue/unlock
//	GET    /api/v1/queues/:queue/jobs
//	GET    /api/v1/jobs/:id
//	GET    /api/v1/jobs/:id/files/:name   (raw file bytes)
//	DELETE /api/v1/jobs/:id
//
// When authentication is enabled every /api/v1 route except login requires
// an "Authorization: Bearer <token>" header carrying a token issued by login.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/spool"
)

const (
	// DefaultPort is the admin API port.
	DefaultPort = 8515

	// DefaultTokenTTL is the lifetime of login tokens.
	DefaultTokenTTL = 24 * time.Hour
)

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	Enabled bool

	// PasswordHash is the bcrypt hash of the admin password.
	PasswordHash string

	// Secret signs tokens (HS256).
	Secret string

	// TokenTTL is the token lifetime (default 24h).
	TokenTTL time.Duration
}

// Config configures the admin API server.
type Config struct {
	// BindAddress is the listen address; empty means all interfaces.
	BindAddress string

	// Port to listen on (default 8515). Negative binds an ephemeral port.
	Port int

	// AllowedOrigins enables CORS for these origins; "*" allows any.
	AllowedOrigins []string

	// ReadTimeout bounds reading a request (default 30s).
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response (default 5m, file downloads
	// can be large).
	WriteTimeout time.Duration

	Auth AuthConfig
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 0 {
		c.Port = 0
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
}

func (c *Config) validate() error {
	if c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.Auth.Enabled {
		if c.Auth.Secret == "" {
			return errors.New("auth enabled but no token secret configured")
		}
		if c.Auth.PasswordHash == "" {
			return errors.New("auth enabled but no password hash configured")
		}
	}
	return nil
}

// Server is the admin API. It implements adapter.Adapter.
type Server struct {
	config Config
	spool  *spool.Spool
	engine *gin.Engine
	auth   *authenticator

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	stopOnce   sync.Once
	stopped    chan struct{}
}

// New builds the API server over sp.
func New(config Config, sp *spool.Spool) (*Server, error) {
	if sp == nil {
		return nil, errors.New("api: spool is required")
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  config,
		spool:   sp,
		auth:    newAuthenticator(config.Auth),
		stopped: make(chan struct{}),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	if len(s.config.AllowedOrigins) > 0 {
		cc := cors.Config{
			AllowMethods: []string{"GET", "POST", "DELETE"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}
		if slices.Contains(s.config.AllowedOrigins, "*") {
			cc.AllowAllOrigins = true
		} else {
			cc.AllowOrigins = s.config.AllowedOrigins
		}
		r.Use(cors.New(cc))
	}

	h := &handlers{spool: s.spool}

	r.GET("/healthz", h.health)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", s.auth.login)

	protected := v1.Group("")
	protected.Use(s.auth.require())
	protected.GET("/queues", h.listQueues)
	protected.POST("/queues/:queue/lock", h.lockQueue)
	protected.POST("/queues/:queue/unlock", h.unlockQueue)
	protected.GET("/queues/:queue/jobs", h.listJobs)
	protected.GET("/jobs/:id", h.getJob)
	protected.GET("/jobs/:id/files/:name", h.getJobFile)
	protected.DELETE("/jobs/:id", h.deleteJob)

	return r
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens and serves until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddress, fmt.Sprintf("%d", s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case <-s.stopped:
		// Stop may have run before the server existed.
		_ = srv.Close()
		return nil
	case err := <-errChan:
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		defer close(s.stopped)

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv == nil {
			return
		}
		if err := srv.Shutdown(ctx); err != nil {
			stopErr = fmt.Errorf("api server shutdown: %w", err)
			return
		}
		logger.Info("API server stopped")
	})
	return stopErr
}

// Protocol returns "API".
func (s *Server) Protocol() string {
	return "API"
}

// Port returns the bound port once listening, the configured one before.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("API %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}
