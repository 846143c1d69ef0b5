package concurrency

import (
	"context"
	"time"

	"github.com/fluxorio/taskpool/pkg/core"
)

// Observer receives pool lifecycle events for metrics collection.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	TaskSubmitted(queueDepth int)
	TaskRejected(err error)
	TaskStarted(workerID int, queueDepth int)
	TaskFinished(workerID int, elapsed time.Duration, fault *TaskFault)
}

// NopObserver ignores all events
type NopObserver struct{}

func (NopObserver) TaskSubmitted(int) {}
func (NopObserver) TaskRejected(error) {}
func (NopObserver) TaskStarted(int, int) {}
func (NopObserver) TaskFinished(int, time.Duration, *TaskFault) {}

// FaultReporter is notified of every TaskFault.
type FaultReporter interface {
	ReportFault(ctx context.Context, fault *TaskFault)
}

// FaultReporterFunc adapts a function into a FaultReporter
type FaultReporterFunc func(ctx context.Context, fault *TaskFault)

// ReportFault implements FaultReporter
func (f FaultReporterFunc) ReportFault(ctx context.Context, fault *TaskFault) {
	f(ctx, fault)
}

// logFaultReporter writes faults to a core.Logger; every pool has one.
type logFaultReporter struct {
	logger core.Logger
}

func (r logFaultReporter) ReportFault(ctx context.Context, fault *TaskFault) {
	l := r.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"pool":      fault.Pool,
		"task":      fault.TaskName,
		"worker_id": fault.WorkerID,
		"elapsed":   fault.Elapsed.String(),
	})
	if fault.Panicked() {
		l.Errorf("task panicked (isolated): %v\n%s", fault.Panic, fault.Stack)
		return
	}
	l.Errorf("task failed: %v", fault.Err)
}
