// Package prometheus exports worker pool, listener and responder metrics.
package prometheus

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxorio/taskpool/pkg/core/concurrency"
)

const namespace = "taskpool"

var (
	// DefaultRegistry is the registry served on the admin /metrics endpoint.
	DefaultRegistry = NewRegistry()

	metricsOnce sync.Once
	metrics     *Metrics
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	registerer prometheus.Registerer

	// Worker pool
	TasksSubmitted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksFinished  *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	QueueDepth     *prometheus.GaugeVec
	RunningTasks   *prometheus.GaugeVec

	// TCP listener
	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
	ConnectionsHandled  *prometheus.CounterVec

	// Responder
	ResponsesTotal   *prometheus.CounterVec
	ResponseBytes    prometheus.Histogram
	ResponseDuration prometheus.Histogram
}

// GetMetrics returns the metrics registered on DefaultRegistry.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegistry)
	})
	return metrics
}

// NewMetrics creates and registers the metric set on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegistry
	}
	factory := promauto.With(registerer)

	return &Metrics{
		registerer: registerer,

		TasksSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted into the queue.",
		}, []string{"pool"}),
		TasksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Submissions refused by the pool.",
		}, []string{"pool", "reason"}),
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Tasks that left a worker, by outcome.",
		}, []string{"pool", "outcome"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Queued tasks not yet claimed by a worker.",
		}, []string{"pool"}),
		RunningTasks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_tasks",
			Help:      "Tasks currently executing.",
		}, []string{"pool"}),

		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_connections_accepted_total",
			Help:      "Connections returned by Accept.",
		}),
		ConnectionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_connections_rejected_total",
			Help:      "Connections closed without being handled.",
		}, []string{"reason"}),
		ConnectionsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_connections_handled_total",
			Help:      "Connections run through the handler, by outcome.",
		}, []string{"outcome"}),

		ResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses written, by status line.",
		}, []string{"status"}),
		ResponseBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_body_bytes",
			Help:      "Response body size.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
		ResponseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_duration_seconds",
			Help:      "Time from first read to response written.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// PoolObserver returns a concurrency.Observer recording under the pool label.
func (m *Metrics) PoolObserver(pool string) concurrency.Observer {
	return &poolObserver{m: m, pool: pool}
}

type poolObserver struct {
	m    *Metrics
	pool string
}

func (o *poolObserver) TaskSubmitted(queueDepth int) {
	o.m.TasksSubmitted.WithLabelValues(o.pool).Inc()
	o.m.QueueDepth.WithLabelValues(o.pool).Set(float64(queueDepth))
}

func (o *poolObserver) TaskRejected(err error) {
	o.m.TasksRejected.WithLabelValues(o.pool, rejectReason(err)).Inc()
}

func (o *poolObserver) TaskStarted(_ int, queueDepth int) {
	o.m.QueueDepth.WithLabelValues(o.pool).Set(float64(queueDepth))
	o.m.RunningTasks.WithLabelValues(o.pool).Inc()
}

func (o *poolObserver) TaskFinished(_ int, elapsed time.Duration, fault *concurrency.TaskFault) {
	o.m.RunningTasks.WithLabelValues(o.pool).Dec()
	o.m.TaskDuration.WithLabelValues(o.pool).Observe(elapsed.Seconds())

	outcome := "ok"
	switch {
	case fault == nil:
	case fault.Panicked():
		outcome = "panic"
	default:
		outcome = "error"
	}
	o.m.TasksFinished.WithLabelValues(o.pool, outcome).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, concurrency.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, concurrency.ErrPoolClosed):
		return "pool_closed"
	default:
		return "canceled"
	}
}

// ConnAccepted implements tcp.ConnObserver.
func (m *Metrics) ConnAccepted() {
	m.ConnectionsAccepted.Inc()
}

// ConnRejected implements tcp.ConnObserver.
func (m *Metrics) ConnRejected(reason string) {
	m.ConnectionsRejected.WithLabelValues(reason).Inc()
}

// ConnHandled implements tcp.ConnObserver.
func (m *Metrics) ConnHandled(err error) {
	if err != nil {
		m.ConnectionsHandled.WithLabelValues("error").Inc()
		return
	}
	m.ConnectionsHandled.WithLabelValues("ok").Inc()
}

// ResponseWritten implements responder.ResponseObserver.
func (m *Metrics) ResponseWritten(status string, bytes int, elapsed time.Duration) {
	m.ResponsesTotal.WithLabelValues(status).Inc()
	m.ResponseBytes.Observe(float64(bytes))
	m.ResponseDuration.Observe(elapsed.Seconds())
}

// RegisterDatabasePool exports connection pool gauges read from stats at
// scrape time.
func (m *Metrics) RegisterDatabasePool(name string, stats func() sql.DBStats) {
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"db": name}, m.registerer))

	gauge := func(metric, help string, value func(sql.DBStats) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      metric,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}
	gauge("db_connections_open", "Open database connections.",
		func(s sql.DBStats) float64 { return float64(s.OpenConnections) })
	gauge("db_connections_idle", "Idle database connections.",
		func(s sql.DBStats) float64 { return float64(s.Idle) })
	gauge("db_connections_in_use", "Database connections in use.",
		func(s sql.DBStats) float64 { return float64(s.InUse) })
	gauge("db_connections_wait_total", "Waits for a database connection.",
		func(s sql.DBStats) float64 { return float64(s.WaitCount) })
}
