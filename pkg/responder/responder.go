// Package responder serves the two static pages of the demo server over raw
// TCP. It recognizes exactly one request line and answers everything else
// with the not-found page.
package responder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/tcp"
)

const (
	// IndexRequestLine is the only request line answered with the index page.
	IndexRequestLine = "GET / HTTP/1.1\r\n"

	// RequestBufferSize bounds how much of a request is read.
	RequestBufferSize = 512

	StatusOK       = "HTTP/1.1 200 OK"
	StatusNotFound = "HTTP/1.1 404 NOT FOUND"
)

// ResponseObserver receives one event per answered request.
type ResponseObserver interface {
	ResponseWritten(status string, bytes int, elapsed time.Duration)
}

type nopResponseObserver struct{}

func (nopResponseObserver) ResponseWritten(string, int, time.Duration) {}

// Responder answers page requests. It is safe for concurrent use.
type Responder struct {
	pages    PageSource
	logger   core.Logger
	observer ResponseObserver
}

// Option customizes a Responder.
type Option func(*Responder)

// WithLogger sets the responder logger.
func WithLogger(logger core.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver sets the response metrics observer.
func WithObserver(observer ResponseObserver) Option {
	return func(r *Responder) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// New creates a Responder reading bodies from pages.
// Fail-fast: panics when pages is nil.
func New(pages PageSource, opts ...Option) *Responder {
	if pages == nil {
		panic("responder requires a page source")
	}
	r := &Responder{
		pages:    pages,
		logger:   core.NewDefaultLogger(),
		observer: nopResponseObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle is a tcp.ConnectionHandler.
func (r *Responder) Handle(ctx *tcp.ConnContext) error {
	return r.Serve(ctx.Context, ctx.Conn)
}

// Serve reads one request from conn and writes one response.
func (r *Responder) Serve(ctx context.Context, conn net.Conn) error {
	start := time.Now()

	buf := make([]byte, RequestBufferSize)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read request: %w", err)
	}

	pages, err := r.pages.Load(ctx)
	if err != nil {
		return fmt.Errorf("load pages: %w", err)
	}

	status, body := Route(buf[:n], pages)
	resp := BuildResponse(status, body)
	if _, err := conn.Write(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	r.observer.ResponseWritten(status, len(body), time.Since(start))
	r.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"status": status,
		"bytes":  len(body),
	}).Debug("response written")
	return nil
}

// Route picks the status line and body for a raw request.
func Route(request []byte, pages Pages) (status string, body []byte) {
	if bytes.HasPrefix(request, []byte(IndexRequestLine)) {
		return StatusOK, pages.Index
	}
	return StatusNotFound, pages.NotFound
}

// BuildResponse formats "<status>\r\nContent-Length: <n>\r\n\r\n<body>".
func BuildResponse(status string, body []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(status) + len(body) + 32)
	b.WriteString(status)
	b.WriteString("\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\r\n\r\n")
	b.Write(body)
	return b.Bytes()
}
