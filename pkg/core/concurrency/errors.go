package concurrency

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPoolSize is returned when a pool is constructed with fewer than one worker
	ErrInvalidPoolSize = errors.New("worker pool size must be at least 1")

	// ErrQueueFull is returned by Submit under BackpressureReject when the queue has no room
	ErrQueueFull = errors.New("task queue is full")

	// ErrPoolClosed is returned when submitting to a pool whose shutdown has begun.
	// Retrying against the same pool will never succeed.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrNilTask is returned when submitting a nil task
	ErrNilTask = errors.New("task cannot be nil")
)

// TaskFault describes a task whose execution returned an error or panicked.
// Faults are contained at the worker boundary: they reach the pool's fault
// reporters and observer, never the submitter.
type TaskFault struct {
	Pool     string
	TaskID   string
	TaskName string
	WorkerID int

	// Err is the error returned by the task, or the panic value converted to an error.
	Err error
	// Panic holds the recovered value when the task panicked.
	Panic interface{}
	// Stack is the goroutine stack captured at recovery time.
	Stack []byte

	Elapsed time.Duration
}

// Error implements error
func (f *TaskFault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("task %s (%s) panicked on worker %d: %v", f.TaskName, f.TaskID, f.WorkerID, f.Panic)
	}
	return fmt.Sprintf("task %s (%s) failed on worker %d: %v", f.TaskName, f.TaskID, f.WorkerID, f.Err)
}

// Unwrap exposes the underlying task error to errors.Is/As
func (f *TaskFault) Unwrap() error {
	return f.Err
}

// Panicked reports whether the fault came from a recovered panic
func (f *TaskFault) Panicked() bool {
	return f.Panic != nil
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
