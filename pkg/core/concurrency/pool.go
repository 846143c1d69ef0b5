package concurrency

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/taskpool/pkg/core"
)

const (
	instrumentationName = "github.com/fluxorio/taskpool/pkg/core/concurrency"
	defaultQueueSize    = 1024
)

// BackpressurePolicy decides what Submit does when the queue is full
type BackpressurePolicy int

const (
	// BackpressureBlock makes Submit wait for room (or shutdown)
	BackpressureBlock BackpressurePolicy = iota
	// BackpressureReject makes Submit fail fast with ErrQueueFull
	BackpressureReject
)

func (p BackpressurePolicy) String() string {
	switch p {
	case BackpressureBlock:
		return "block"
	case BackpressureReject:
		return "reject"
	default:
		return fmt.Sprintf("BackpressurePolicy(%d)", int(p))
	}
}

// ParseBackpressurePolicy parses "block" or "reject"
func ParseBackpressurePolicy(s string) (BackpressurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return BackpressureBlock, nil
	case "reject":
		return BackpressureReject, nil
	default:
		return BackpressureBlock, fmt.Errorf("unknown backpressure policy %q", s)
	}
}

// WorkerPoolConfig configures a WorkerPool
type WorkerPoolConfig struct {
	Name         string             // Used in logs, metrics and spans
	Workers      int                // Number of worker goroutines, must be >= 1
	QueueSize    int                // Task queue capacity
	Backpressure BackpressurePolicy // Submit behaviour on a full queue
}

// DefaultWorkerPoolConfig returns default worker pool configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Name:         "default",
		Workers:      4,
		QueueSize:    defaultQueueSize,
		Backpressure: BackpressureBlock,
	}
}

// WorkerPool runs submitted tasks on a fixed set of worker goroutines.
//
// Tasks are dequeued in submission order; completion order across workers is
// unspecified. Shutdown stops accepting work, lets the workers drain the
// queue and waits for them to exit. Running tasks are never cancelled.
type WorkerPool struct {
	name    string
	policy  BackpressurePolicy
	ctx     context.Context
	queue   *taskQueue
	workers []*worker
	wg      sync.WaitGroup
	done    chan struct{}

	logger    core.Logger
	observer  Observer
	reporters []FaultReporter
	tracer    trace.Tracer

	submitted   atomic.Int64
	completed   atomic.Int64
	faulted     atomic.Int64
	rejected    atomic.Int64
	running     atomic.Int64
	peakRunning atomic.Int64
}

// New creates and starts a pool of size workers with default settings.
// It fails with ErrInvalidPoolSize when size < 1.
func New(size int, opts ...Option) (*WorkerPool, error) {
	config := DefaultWorkerPoolConfig()
	config.Workers = size
	return NewWorkerPool(context.Background(), config, opts...)
}

// NewWorkerPool creates and starts a WorkerPool. ctx supplies the values of
// every task context; its cancellation is not propagated, so tasks drained
// during shutdown still run with a live context.
func NewWorkerPool(ctx context.Context, config WorkerPoolConfig, opts ...Option) (*WorkerPool, error) {
	if config.Workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoolSize, config.Workers)
	}
	if config.QueueSize < 1 {
		config.QueueSize = defaultQueueSize
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if ctx == nil {
		ctx = context.Background()
	}

	wp := &WorkerPool{
		name:     config.Name,
		policy:   config.Backpressure,
		ctx:      context.WithoutCancel(ctx),
		queue:    newTaskQueue(config.QueueSize),
		done:     make(chan struct{}),
		logger:   core.NewDefaultLogger(),
		observer: NopObserver{},
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(wp)
	}

	wp.start(config.Workers)
	return wp, nil
}

func (wp *WorkerPool) start(n int) {
	wp.workers = make([]*worker, n)
	wp.wg.Add(n)
	for i := range wp.workers {
		w := &worker{id: i, pool: wp}
		wp.workers[i] = w
		go w.run()
	}

	go func() {
		wp.wg.Wait()
		close(wp.done)
	}()

	wp.logger.Infof("worker pool %s started with %d workers (queue=%d, backpressure=%s)",
		wp.name, n, wp.queue.capacity, wp.policy)
}

// Submit enqueues a task according to the pool's backpressure policy.
// Returns ErrPoolClosed once shutdown has begun and ErrQueueFull when the
// queue is full under BackpressureReject.
func (wp *WorkerPool) Submit(task Task) error {
	return wp.submit(context.Background(), task, wp.policy == BackpressureBlock)
}

// SubmitContext enqueues a task, waiting for queue room until ctx is done
// regardless of the backpressure policy.
func (wp *WorkerPool) SubmitContext(ctx context.Context, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return wp.submit(ctx, task, true)
}

// SubmitFunc enqueues a zero-argument procedure
func (wp *WorkerPool) SubmitFunc(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	return wp.Submit(Func(fn))
}

func (wp *WorkerPool) submit(ctx context.Context, task Task, block bool) error {
	if task == nil {
		return ErrNilTask
	}

	env := &envelope{
		id:       core.GenerateID(),
		task:     task,
		enqueued: time.Now(),
	}
	if err := wp.queue.push(ctx, env, block); err != nil {
		wp.rejected.Add(1)
		wp.notify("TaskRejected", func() { wp.observer.TaskRejected(err) })
		return err
	}

	wp.submitted.Add(1)
	wp.notify("TaskSubmitted", func() { wp.observer.TaskSubmitted(wp.queue.size()) })
	return nil
}

// Shutdown stops accepting submissions and blocks until every queued and
// running task has finished and all workers have exited. If ctx ends first
// an error is returned; the workers keep draining in the background.
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if wp.queue.close() {
		wp.logger.Infof("worker pool %s shutting down with %d pending tasks", wp.name, wp.queue.size())
	}

	select {
	case <-wp.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// Close shuts the pool down and waits without a deadline
func (wp *WorkerPool) Close() error {
	return wp.Shutdown(context.Background())
}

// Done is closed once every worker has terminated
func (wp *WorkerPool) Done() <-chan struct{} {
	return wp.done
}

// Name returns the pool name
func (wp *WorkerPool) Name() string {
	return wp.name
}

// Workers returns the fixed number of workers
func (wp *WorkerPool) Workers() int {
	return len(wp.workers)
}

// Pending returns the number of queued tasks not yet claimed by a worker
func (wp *WorkerPool) Pending() int {
	return wp.queue.size()
}

// IsClosed reports whether shutdown has begun
func (wp *WorkerPool) IsClosed() bool {
	return wp.queue.isClosed.Load()
}

func (wp *WorkerPool) markRunning() {
	n := wp.running.Add(1)
	for {
		peak := wp.peakRunning.Load()
		if n <= peak || wp.peakRunning.CompareAndSwap(peak, n) {
			return
		}
	}
}

// notify calls an Observer hook. A panicking observer is logged and
// swallowed like a panicking reporter.
func (wp *WorkerPool) notify(event string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			wp.logger.Errorf("observer %s panicked: %v", event, rec)
		}
	}()
	fn()
}

// reportFault fans a fault out to the logger and reporters. A misbehaving
// reporter must not take the worker down with it.
func (wp *WorkerPool) reportFault(ctx context.Context, fault *TaskFault) {
	reporters := append([]FaultReporter{logFaultReporter{logger: wp.logger}}, wp.reporters...)
	for _, r := range reporters {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					wp.logger.Errorf("fault reporter panicked: %v", rec)
				}
			}()
			r.ReportFault(ctx, fault)
		}()
	}
}
