// Package natsfault publishes task faults as JSON events on NATS.
package natsfault

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/core/concurrency"
)

// DefaultSubject prefixes fault subjects: <subject>.<pool>.
const DefaultSubject = "taskpool.faults"

// Config configures a Reporter.
type Config struct {
	URL     string
	Subject string
	// Name is an optional NATS connection name.
	Name string
}

// Event is the JSON payload of a fault message.
type Event struct {
	Pool      string    `json:"pool"`
	TaskID    string    `json:"task_id"`
	TaskName  string    `json:"task_name"`
	WorkerID  int       `json:"worker_id"`
	RequestID string    `json:"request_id,omitempty"`
	Error     string    `json:"error"`
	Panicked  bool      `json:"panicked"`
	Stack     string    `json:"stack,omitempty"`
	ElapsedMS float64   `json:"elapsed_ms"`
	Time      time.Time `json:"time"`
}

// Reporter is a concurrency.FaultReporter backed by a NATS connection.
type Reporter struct {
	nc      *nats.Conn
	subject string
	logger  core.Logger
}

var _ concurrency.FaultReporter = (*Reporter)(nil)

// New connects to NATS.
func New(cfg Config, logger core.Logger) (*Reporter, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	return &Reporter{nc: nc, subject: subject, logger: logger}, nil
}

// Subject returns the subject faults of pool are published on.
func (r *Reporter) Subject(pool string) string {
	return r.subject + "." + pool
}

// ReportFault implements concurrency.FaultReporter. Publish errors are
// logged, never returned to the worker.
func (r *Reporter) ReportFault(ctx context.Context, fault *concurrency.TaskFault) {
	ev := NewEvent(ctx, fault)
	data, err := core.JSONEncode(ev)
	if err != nil {
		r.logger.Errorf("encode fault event: %v", err)
		return
	}

	msg := &nats.Msg{
		Subject: r.Subject(fault.Pool),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Task-Id", fault.TaskID)
	if ev.RequestID != "" {
		msg.Header.Set("X-Request-ID", ev.RequestID)
	}
	if err := r.nc.PublishMsg(msg); err != nil {
		r.logger.WithContext(ctx).Warnf("publish fault event: %v", err)
	}
}

// NewEvent converts a fault into its wire form.
func NewEvent(ctx context.Context, fault *concurrency.TaskFault) Event {
	ev := Event{
		Pool:      fault.Pool,
		TaskID:    fault.TaskID,
		TaskName:  fault.TaskName,
		WorkerID:  fault.WorkerID,
		RequestID: core.GetRequestID(ctx),
		Panicked:  fault.Panicked(),
		ElapsedMS: float64(fault.Elapsed) / float64(time.Millisecond),
		Time:      time.Now().UTC(),
	}
	if fault.Err != nil {
		ev.Error = fault.Err.Error()
	}
	if len(fault.Stack) > 0 {
		ev.Stack = string(fault.Stack)
	}
	return ev
}

// Flush waits for published events to reach the server.
func (r *Reporter) Flush() error {
	return r.nc.Flush()
}

// Close drains the connection.
func (r *Reporter) Close() error {
	return r.nc.Drain()
}
