// Package server assembles the page server: a worker pool fed by the TCP
// listener, the responder, page storage, the admin endpoint and the
// tracing and fault-reporting sinks, all driven from one AppConfig.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/fluxorio/taskpool/pkg/config"
	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/core/concurrency"
	"github.com/fluxorio/taskpool/pkg/db"
	"github.com/fluxorio/taskpool/pkg/observability/natsfault"
	"github.com/fluxorio/taskpool/pkg/observability/otel"
	"github.com/fluxorio/taskpool/pkg/observability/prometheus"
	"github.com/fluxorio/taskpool/pkg/responder"
	"github.com/fluxorio/taskpool/pkg/tcp"
	"github.com/fluxorio/taskpool/pkg/web"
)

const instrumentationName = "github.com/fluxorio/taskpool"

// Server owns every long-lived component of the process.
type Server struct {
	cfg    *config.AppConfig
	logger core.Logger

	registry *prom.Registry
	metrics  *prometheus.Metrics

	pool     *concurrency.WorkerPool
	listener *tcp.TCPServer
	admin    *web.AdminServer
	pages    responder.PageSource
	dbPool   *db.Pool
	faults   *natsfault.Reporter
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the root logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry registers metrics on reg instead of the default registry.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// Stats is the /stats payload.
type Stats struct {
	Pool     concurrency.Stats `json:"pool"`
	Workers  []string          `json:"workers"`
	Listener tcp.ServerMetrics `json:"listener"`
}

// New builds every component from cfg. Nothing accepts connections until
// Run. On error everything already opened is closed again.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (_ *Server, err error) {
	s := &Server{
		cfg:      cfg,
		logger:   core.NewDefaultLogger(),
		registry: prometheus.DefaultRegistry,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == prometheus.DefaultRegistry {
		s.metrics = prometheus.GetMetrics()
	} else {
		s.metrics = prometheus.NewMetrics(s.registry)
	}

	defer func() {
		if err != nil {
			if s.pool != nil {
				_ = s.pool.Close()
			}
			s.closeResources(context.Background())
		}
	}()

	if err := otel.Initialize(ctx, otel.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if s.pages, err = s.openPages(ctx); err != nil {
		return nil, err
	}

	poolOpts := []concurrency.Option{
		concurrency.WithLogger(s.logger),
		concurrency.WithObserver(s.metrics.PoolObserver(cfg.Pool.Name)),
		concurrency.WithTracer(otel.Tracer(instrumentationName)),
	}
	if cfg.Faults.NATSURL != "" {
		s.faults, err = natsfault.New(natsfault.Config{
			URL:     cfg.Faults.NATSURL,
			Subject: cfg.Faults.Subject,
			Name:    cfg.Pool.Name,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		poolOpts = append(poolOpts, concurrency.WithFaultReporter(s.faults))
	}

	policy, err := concurrency.ParseBackpressurePolicy(cfg.Pool.Backpressure)
	if err != nil {
		return nil, err
	}
	s.pool, err = concurrency.NewWorkerPool(ctx, concurrency.WorkerPoolConfig{
		Name:         cfg.Pool.Name,
		Workers:      cfg.Pool.Workers,
		QueueSize:    cfg.Pool.QueueSize,
		Backpressure: policy,
	}, poolOpts...)
	if err != nil {
		return nil, err
	}

	tcpCfg := &tcp.TCPServerConfig{
		Addr:         cfg.Listener.Addr,
		MaxConns:     cfg.Listener.MaxConns,
		MaxAccept:    cfg.Listener.MaxAccept,
		ReadTimeout:  cfg.Listener.ReadTimeout,
		WriteTimeout: cfg.Listener.WriteTimeout,
	}
	if cfg.Listener.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Listener.TLSCert, cfg.Listener.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load tls key pair: %w", err)
		}
		tcpCfg.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}
	s.listener = tcp.NewTCPServer(s.pool, tcpCfg,
		tcp.WithLogger(s.logger),
		tcp.WithConnObserver(s.metrics))
	s.listener.SetHandler(responder.New(s.pages,
		responder.WithLogger(s.logger),
		responder.WithObserver(s.metrics)).Handle)

	if cfg.Admin.Enabled {
		s.admin = web.NewAdminServer(web.DefaultAdminConfig(cfg.Admin.Addr),
			web.WithLogger(s.logger),
			web.WithGatherer(s.registry),
			web.WithHealth(s.health),
			web.WithStats(func() interface{} { return s.Stats() }))
	}

	return s, nil
}

func (s *Server) openPages(ctx context.Context) (responder.PageSource, error) {
	files := responder.NewFileSource(s.cfg.Pages.Dir)
	if s.cfg.Pages.Source != "sql" {
		return files, nil
	}

	dbCfg := db.DefaultPoolConfig(s.cfg.Pages.DSN, s.cfg.Pages.Driver)
	if dbCfg.DriverName == db.DriverSQLite {
		dbCfg.MaxOpenConns = 1
		dbCfg.MaxIdleConns = 1
		dbCfg.ConnMaxLifetime = 0
		dbCfg.ConnMaxIdleTime = 0
	}
	pool, err := db.NewPool(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	s.dbPool = pool
	s.metrics.RegisterDatabasePool("pages", pool.Stats)

	src := responder.NewSQLSource(pool, s.cfg.Pages.Table)
	if err := src.Migrate(ctx); err != nil {
		return nil, err
	}
	if s.cfg.Pages.Seed {
		pages, err := files.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed pages: %w", err)
		}
		if err := src.Seed(ctx, pages); err != nil {
			return nil, err
		}
		s.logger.Infof("seeded %s from %s", s.cfg.Pages.Table, s.cfg.Pages.Dir)
	}
	return src, nil
}

// Run serves until ctx is done or the listener has accepted its
// max_accept connections, then drains the pool and releases everything.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	listenerDone := make(chan struct{})
	g.Go(func() error {
		defer close(listenerDone)
		return s.listener.Start()
	})
	if s.admin != nil {
		g.Go(s.admin.Start)
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-listenerDone:
		}
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down")
	_ = s.listener.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain pool: %w", err))
	}
	stats := s.pool.Stats()
	s.logger.Infof("pool %s stopped: completed=%d faulted=%d rejected=%d",
		stats.Name, stats.Completed, stats.Faulted, stats.Rejected)

	if s.admin != nil {
		if err := s.admin.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop admin: %w", err))
		}
	}
	s.closeResources(ctx)
	return errors.Join(errs...)
}

func (s *Server) closeResources(ctx context.Context) {
	if s.faults != nil {
		if err := s.faults.Close(); err != nil {
			s.logger.Warnf("close fault reporter: %v", err)
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Warnf("close page store: %v", err)
		}
	}
	if err := otel.Shutdown(ctx); err != nil {
		s.logger.Warnf("flush traces: %v", err)
	}
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Pool.ShutdownTimeout > 0 {
		return s.cfg.Pool.ShutdownTimeout
	}
	return 30 * time.Second
}

func (s *Server) health() error {
	if s.pool.IsClosed() {
		return errors.New("worker pool is shut down")
	}
	return nil
}

// Stats snapshots the pool and listener.
func (s *Server) Stats() Stats {
	states := s.pool.WorkerStates()
	workers := make([]string, len(states))
	for i, st := range states {
		workers[i] = st.String()
	}
	return Stats{
		Pool:     s.pool.Stats(),
		Workers:  workers,
		Listener: s.listener.Metrics(),
	}
}

// Pool returns the worker pool.
func (s *Server) Pool() *concurrency.WorkerPool { return s.pool }

// ListenerAddr returns the bound page address, or "" when not listening.
func (s *Server) ListenerAddr() string { return s.listener.ListeningAddr() }

// AdminAddr returns the bound admin address, or "" when disabled or not
// yet listening.
func (s *Server) AdminAddr() string {
	if s.admin == nil {
		return ""
	}
	return s.admin.ListeningAddr()
}
