package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/core/concurrency"
)

// TCPServer accepts connections and submits one task per connection to a
// worker pool. It never owns the pool: stopping the server only stops
// accepting, and the caller shuts the pool down to drain in-flight work.
type TCPServer struct {
	addr   string
	config *TCPServerConfig
	pool   Submitter

	logger   core.Logger
	observer ConnObserver

	mu       sync.RWMutex
	listener net.Listener
	handler  ConnectionHandler
	started  atomic.Bool
	stopping atomic.Bool

	limiter *connLimiter

	// Metrics (atomic for thread-safety)
	totalAccepted       int64
	rejectedConnections int64
	handledConnections  int64
	errorConnections    int64
}

// TCPServerConfig configures the TCP server.
type TCPServerConfig struct {
	Addr string

	// MaxConns bounds concurrent in-flight connections (queued + handling).
	// 0 means unlimited.
	MaxConns int
	// MaxAccept stops the accept loop after that many connections.
	// 0 means unlimited.
	MaxAccept int

	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// Connection settings.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ServerOption customizes a TCPServer.
type ServerOption func(*TCPServer)

// WithLogger sets the server logger.
func WithLogger(logger core.Logger) ServerOption {
	return func(s *TCPServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConnObserver sets the connection metrics observer.
func WithConnObserver(observer ConnObserver) ServerOption {
	return func(s *TCPServer) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// DefaultTCPServerConfig returns a sensible default configuration.
func DefaultTCPServerConfig(addr string) *TCPServerConfig {
	if addr == "" {
		addr = "127.0.0.1:8888"
	}
	return &TCPServerConfig{
		Addr:         addr,
		MaxConns:     0,
		MaxAccept:    0,
		TLSConfig:    nil,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// NewTCPServer creates a new TCP server feeding pool.
// Fail-fast: panics when pool is nil.
func NewTCPServer(pool Submitter, config *TCPServerConfig, opts ...ServerOption) *TCPServer {
	if pool == nil {
		panic("tcp server requires a task submitter")
	}
	if config == nil {
		config = DefaultTCPServerConfig("")
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8888"
	}
	if config.MaxConns < 0 {
		config.MaxConns = 0
	}
	if config.MaxAccept < 0 {
		config.MaxAccept = 0
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	s := &TCPServer{
		addr:     config.Addr,
		config:   config,
		pool:     pool,
		logger:   core.NewDefaultLogger(),
		observer: nopConnObserver{},
		handler:  defaultConnectionHandler,
		limiter:  newConnLimiter(config.MaxConns),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultConnectionHandler(ctx *ConnContext) error {
	// Default: do nothing. Connection will be closed by server.
	return nil
}

// SetHandler sets the connection handler (fail-fast on nil).
func (s *TCPServer) SetHandler(handler ConnectionHandler) {
	if handler == nil {
		panic("tcp handler cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// ListeningAddr returns the actual listening address (useful when Addr is ":0").
// Returns empty string if not currently listening.
func (s *TCPServer) ListeningAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and runs the accept loop. It blocks until Stop
// is called or MaxAccept connections were accepted, returning nil in both
// cases.
func (s *TCPServer) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("tcp server already started")
	}

	var (
		ln  net.Listener
		err error
	)
	if s.config.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.addr, s.config.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Infof("tcp server listening on %s", ln.Addr())
	return s.acceptLoop(ln)
}

func (s *TCPServer) acceptLoop(ln net.Listener) error {
	for accepted := 0; s.config.MaxAccept == 0 || accepted < s.config.MaxAccept; accepted++ {
		conn, err := ln.Accept()
		if err != nil {
			// If we're stopping, treat "closed listener" as clean shutdown.
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.dispatch(conn)
	}

	s.logger.Infof("tcp server accepted %d connections, no longer accepting", s.config.MaxAccept)
	s.closeListener()
	return nil
}

// Stop stops accepting connections. In-flight connection tasks keep running
// in the pool.
func (s *TCPServer) Stop() error {
	s.stopping.Store(true)
	s.closeListener()
	return nil
}

func (s *TCPServer) closeListener() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	// Close listener to break Accept().
	if ln != nil {
		_ = ln.Close()
	}
}

// Metrics returns current server metrics.
func (s *TCPServer) Metrics() ServerMetrics {
	return ServerMetrics{
		TotalAccepted:       atomic.LoadInt64(&s.totalAccepted),
		RejectedConnections: atomic.LoadInt64(&s.rejectedConnections),
		HandledConnections:  atomic.LoadInt64(&s.handledConnections),
		ErrorConnections:    atomic.LoadInt64(&s.errorConnections),
		ActiveConnections:   s.limiter.activeCount(),
		MaxConns:            s.config.MaxConns,
		MaxAccept:           s.config.MaxAccept,
	}
}

// dispatch turns an accepted connection into a pool task.
func (s *TCPServer) dispatch(conn net.Conn) {
	atomic.AddInt64(&s.totalAccepted, 1)
	s.observer.ConnAccepted()

	if !s.limiter.tryAcquire() {
		s.reject(conn, "max_conns")
		return
	}

	requestID := core.GenerateID()
	task := concurrency.NewNamedTask("tcp-conn", func(ctx context.Context) error {
		return s.handle(ctx, conn, requestID)
	})

	// Submit may block under the pool's block policy; that stalls Accept and
	// leaves further clients in the kernel backlog.
	if err := s.pool.Submit(task); err != nil {
		s.limiter.release()
		reason := "pool_error"
		switch {
		case errors.Is(err, concurrency.ErrQueueFull):
			reason = "queue_full"
		case errors.Is(err, concurrency.ErrPoolClosed):
			reason = "pool_closed"
		}
		s.logger.Warnf("tcp connection from %s rejected: %v", conn.RemoteAddr(), err)
		s.reject(conn, reason)
	}
}

func (s *TCPServer) reject(conn net.Conn, reason string) {
	atomic.AddInt64(&s.rejectedConnections, 1)
	s.observer.ConnRejected(reason)
	_ = conn.Close()
}

// handle runs inside a pool worker. Errors and panics propagate to the
// worker boundary, which reports them as task faults.
func (s *TCPServer) handle(ctx context.Context, conn net.Conn, requestID string) error {
	defer s.limiter.release()
	defer func() { _ = conn.Close() }()
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.errorConnections, 1)
			s.observer.ConnHandled(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	// Per-connection timeouts (best-effort).
	_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))

	ctx = core.WithRequestID(ctx, requestID)

	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()

	cctx := &ConnContext{
		Context:    ctx,
		Conn:       conn,
		RequestID:  requestID,
		Logger:     s.logger.WithContext(ctx),
		LocalAddr:  conn.LocalAddr(),
		RemoteAddr: conn.RemoteAddr(),
	}

	atomic.AddInt64(&s.handledConnections, 1)
	if err := h(cctx); err != nil {
		atomic.AddInt64(&s.errorConnections, 1)
		s.observer.ConnHandled(err)
		return fmt.Errorf("tcp handler for %s: %w", cctx.RemoteAddr, err)
	}
	s.observer.ConnHandled(nil)
	return nil
}
