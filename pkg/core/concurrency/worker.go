package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/taskpool/pkg/core"
)

// WorkerState is the state of a single worker
type WorkerState int32

const (
	// WorkerIdle means the worker is waiting for a task
	WorkerIdle WorkerState = iota
	// WorkerRunning means the worker is executing a task
	WorkerRunning
	// WorkerTerminated means the worker saw the queue closed and drained
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

type worker struct {
	id    int
	pool  *WorkerPool
	state atomic.Int32
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	defer w.state.Store(int32(WorkerTerminated))

	for {
		env, ok := w.pool.queue.pop()
		if !ok {
			return
		}
		w.execute(env)
	}
}

// execute runs one task. The worker returns to Idle whatever the task did.
func (w *worker) execute(env *envelope) {
	p := w.pool

	w.state.Store(int32(WorkerRunning))
	p.markRunning()
	p.notify("TaskStarted", func() { p.observer.TaskStarted(w.id, p.queue.size()) })

	env.name = taskName(env.task)
	ctx := core.WithTaskID(p.ctx, env.id)
	ctx, span := p.tracer.Start(ctx, "taskpool.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("taskpool.pool", p.name),
			attribute.String("taskpool.task.id", env.id),
			attribute.String("taskpool.task.name", env.name),
			attribute.Int("taskpool.worker.id", w.id),
			attribute.Int64("taskpool.task.queued_us", time.Since(env.enqueued).Microseconds()),
		),
	)

	start := time.Now()
	fault := w.safeExecute(ctx, env)
	elapsed := time.Since(start)

	if fault != nil {
		fault.Elapsed = elapsed
		span.RecordError(fault)
		span.SetStatus(codes.Error, fault.Error())
		p.faulted.Add(1)
		p.reportFault(ctx, fault)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	p.completed.Add(1)
	p.notify("TaskFinished", func() { p.observer.TaskFinished(w.id, elapsed, fault) })
	p.running.Add(-1)
	w.state.Store(int32(WorkerIdle))
}

// taskName returns task.Name(), or a placeholder when Name panics.
func taskName(task Task) (name string) {
	defer func() {
		if recover() != nil {
			name = "unnamed"
		}
	}()
	return task.Name()
}

// safeExecute converts a returned error or a panic into a TaskFault.
func (w *worker) safeExecute(ctx context.Context, env *envelope) (fault *TaskFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = w.newFault(env)
			fault.Panic = r
			fault.Err = panicError(r)
			fault.Stack = debug.Stack()
		}
	}()

	if err := env.task.Execute(ctx); err != nil {
		fault = w.newFault(env)
		fault.Err = err
	}
	return fault
}

func (w *worker) newFault(env *envelope) *TaskFault {
	return &TaskFault{
		Pool:     w.pool.name,
		TaskID:   env.id,
		TaskName: env.name,
		WorkerID: w.id,
	}
}
