package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskFunc(t *testing.T) {
	want := errors.New("x")
	var task Task = TaskFunc(func(ctx context.Context) error { return want })

	assert.Equal(t, "TaskFunc", task.Name())
	assert.Same(t, want, task.Execute(context.Background()))
}

func TestFunc(t *testing.T) {
	called := false
	var task Task = Func(func() { called = true })

	assert.NoError(t, task.Execute(context.Background()))
	assert.True(t, called, "Func was not called")
}

func TestNamedTask(t *testing.T) {
	task := NewNamedTask("test-task", func(ctx context.Context) error { return nil })

	assert.Equal(t, "test-task", task.Name())
}

func TestTaskFault_Error(t *testing.T) {
	f := &TaskFault{TaskID: "id", TaskName: "n", WorkerID: 2, Err: errors.New("bad")}
	assert.Equal(t, "task n (id) failed on worker 2: bad", f.Error())

	p := &TaskFault{TaskID: "id", TaskName: "n", WorkerID: 0, Panic: "oops", Err: panicError("oops")}
	assert.Equal(t, "task n (id) panicked on worker 0: oops", p.Error())

	inner := errors.New("inner")
	wrapped := &TaskFault{Panic: inner, Err: panicError(inner)}
	assert.ErrorIs(t, wrapped, inner, "panic error value should unwrap to the original error")
}
