package concurrency

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/taskpool/pkg/core"
)

// Option customizes a WorkerPool at construction
type Option func(*WorkerPool)

// WithLogger sets the pool logger. Defaults to core.NewDefaultLogger().
func WithLogger(logger core.Logger) Option {
	return func(wp *WorkerPool) {
		if logger != nil {
			wp.logger = logger
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(observer Observer) Option {
	return func(wp *WorkerPool) {
		if observer != nil {
			wp.observer = observer
		}
	}
}

// WithFaultReporter adds fault reporters in addition to the logger
func WithFaultReporter(reporters ...FaultReporter) Option {
	return func(wp *WorkerPool) {
		for _, r := range reporters {
			if r != nil {
				wp.reporters = append(wp.reporters, r)
			}
		}
	}
}

// WithTracer sets the tracer used for task spans.
// Defaults to the global OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(wp *WorkerPool) {
		if tracer != nil {
			wp.tracer = tracer
		}
	}
}
