package tcp

import (
	"context"
	"net"

	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/core/concurrency"
)

// Submitter is the part of a worker pool the listener needs.
// *concurrency.WorkerPool satisfies it.
type Submitter interface {
	Submit(task concurrency.Task) error
}

// ConnectionHandler handles a single TCP connection inside a pool task.
// Implementations must not block forever: the pool waits for them on shutdown.
// The server closes the connection after the handler returns.
type ConnectionHandler func(ctx *ConnContext) error

// ConnContext provides per-connection context to a handler.
type ConnContext struct {
	Context   context.Context
	Conn      net.Conn
	RequestID string
	Logger    core.Logger

	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// ServerMetrics provides TCP listener metrics.
type ServerMetrics struct {
	TotalAccepted       int64 `json:"total_accepted"`
	RejectedConnections int64 `json:"rejected_connections"` // limiter or pool refused
	HandledConnections  int64 `json:"handled_connections"`
	ErrorConnections    int64 `json:"error_connections"`
	ActiveConnections   int64 `json:"active_connections"`
	MaxConns            int   `json:"max_conns"`
	MaxAccept           int   `json:"max_accept"`
}

// ConnObserver receives per-connection events for metrics collection.
type ConnObserver interface {
	ConnAccepted()
	ConnRejected(reason string)
	ConnHandled(err error)
}

type nopConnObserver struct{}

func (nopConnObserver) ConnAccepted()       {}
func (nopConnObserver) ConnRejected(string) {}
func (nopConnObserver) ConnHandled(error)   {}
