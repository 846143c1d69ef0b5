// Package web serves the admin HTTP endpoints: Prometheus metrics, health
// and a JSON stats snapshot.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fluxorio/taskpool/pkg/core"
)

// HealthFunc reports nil when the process is healthy.
type HealthFunc func() error

// StatsFunc returns a JSON-encodable snapshot.
type StatsFunc func() interface{}

// AdminConfig configures the admin server.
type AdminConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultAdminConfig returns defaults listening on addr.
func DefaultAdminConfig(addr string) AdminConfig {
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	return AdminConfig{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// AdminServer is a small fasthttp server for operators.
type AdminServer struct {
	config  AdminConfig
	server  *fasthttp.Server
	logger  core.Logger
	metrics fasthttp.RequestHandler

	mu       sync.RWMutex
	listener net.Listener
	health   HealthFunc
	stats    StatsFunc
}

// AdminOption customizes an AdminServer.
type AdminOption func(*AdminServer)

// WithLogger sets the server logger.
func WithLogger(logger core.Logger) AdminOption {
	return func(s *AdminServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) AdminOption {
	return func(s *AdminServer) {
		if g != nil {
			s.metrics = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
		}
	}
}

// WithHealth sets the /healthz check.
func WithHealth(fn HealthFunc) AdminOption {
	return func(s *AdminServer) { s.health = fn }
}

// WithStats sets the /stats snapshot source.
func WithStats(fn StatsFunc) AdminOption {
	return func(s *AdminServer) { s.stats = fn }
}

// NewAdminServer creates an admin server. It does not listen until Start.
func NewAdminServer(config AdminConfig, opts ...AdminOption) *AdminServer {
	s := &AdminServer{
		config:  config,
		logger:  core.NewDefaultLogger(),
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &fasthttp.Server{
		Handler:      s.Handler,
		Name:         "taskpool-admin",
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler routes admin requests.
func (s *AdminServer) Handler(ctx *fasthttp.RequestCtx) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("admin handler panic on %s: %v", ctx.Path(), r)
			ctx.Error("internal error", fasthttp.StatusInternalServerError)
		}
	}()

	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}

	switch string(ctx.Path()) {
	case "/metrics":
		s.metrics(ctx)
	case "/healthz":
		s.handleHealth(ctx)
	case "/stats":
		s.handleStats(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *AdminServer) handleHealth(ctx *fasthttp.RequestCtx) {
	if s.health != nil {
		if err := s.health(); err != nil {
			ctx.Error(err.Error(), fasthttp.StatusServiceUnavailable)
			return
		}
	}
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("ok")
}

func (s *AdminServer) handleStats(ctx *fasthttp.RequestCtx) {
	if s.stats == nil {
		ctx.Error("stats not configured", fasthttp.StatusNotFound)
		return
	}
	data, err := core.JSONEncode(s.stats())
	if err != nil {
		s.logger.Errorf("encode stats: %v", err)
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

// Start listens on the configured address and serves until Stop.
func (s *AdminServer) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *AdminServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Infof("admin server listening on %s", ln.Addr())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// ListeningAddr returns the bound address, or "" before Start.
func (s *AdminServer) ListeningAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and waits for open requests.
func (s *AdminServer) Stop(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}
