package concurrency

import (
	"context"
)

// Task represents a unit of work that can be executed by a WorkerPool.
// State captured by a task belongs to the task once it is submitted;
// submitters must not touch it concurrently.
type Task interface {
	// Execute performs the task work.
	// A returned error is reported as a TaskFault, never to the submitter.
	Execute(ctx context.Context) error

	// Name returns a human-readable name for the task (for logging/debugging)
	Name() string
}

// TaskFunc is a function type that implements Task
// Allows functions to be used as tasks without creating a struct
type TaskFunc func(ctx context.Context) error

// Execute implements Task interface for TaskFunc
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name returns a default name for TaskFunc
func (f TaskFunc) Name() string {
	return "TaskFunc"
}

// Func adapts a zero-argument procedure into a Task.
type Func func()

// Execute implements Task interface for Func
func (f Func) Execute(context.Context) error {
	f()
	return nil
}

// Name returns a default name for Func
func (f Func) Name() string {
	return "Func"
}

// NamedTask wraps a TaskFunc with a custom name
type NamedTask struct {
	name string
	task TaskFunc
}

// NewNamedTask creates a new NamedTask
func NewNamedTask(name string, task TaskFunc) *NamedTask {
	return &NamedTask{
		name: name,
		task: task,
	}
}

// Execute implements Task interface
func (nt *NamedTask) Execute(ctx context.Context) error {
	return nt.task(ctx)
}

// Name returns the task name
func (nt *NamedTask) Name() string {
	return nt.name
}
