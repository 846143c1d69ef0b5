package core_test

import (
	"context"
	"os"

	"github.com/fluxorio/taskpool/pkg/core"
)

func ExampleLogger_WithFields() {
	logger := core.NewLogger(core.LoggerOptions{Output: os.Stdout, OmitTime: true})

	// Add structured fields
	loggerWithFields := logger.WithFields(map[string]interface{}{
		"pool":   "responder",
		"worker": 1,
	})

	loggerWithFields.Info("task finished")
	// Output: level=INFO msg="task finished" pool=responder worker=1
}

func ExampleLogger_WithContext() {
	logger := core.NewLogger(core.LoggerOptions{Format: "json", Output: os.Stdout, OmitTime: true})

	ctx := core.WithTaskID(context.Background(), "7d0e")

	// Create logger with context (automatically extracts the task ID)
	logger.WithContext(ctx).Warn("task failed")
	// Output: {"level":"WARN","msg":"task failed","task_id":"7d0e"}
}
