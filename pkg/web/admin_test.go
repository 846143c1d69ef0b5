package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fluxorio/taskpool/pkg/core"
)

func newRequestCtx(method, path string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func newTestAdmin(opts ...AdminOption) *AdminServer {
	opts = append([]AdminOption{WithLogger(core.NewNopLogger())}, opts...)
	return NewAdminServer(DefaultAdminConfig("127.0.0.1:0"), opts...)
}

func TestAdminServer_Healthz(t *testing.T) {
	healthy := true
	s := newTestAdmin(WithHealth(func() error {
		if healthy {
			return nil
		}
		return errors.New("pool closed")
	}))

	ctx := newRequestCtx("GET", "/healthz")
	s.Handler(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "ok", string(ctx.Response.Body()))

	healthy = false
	ctx = newRequestCtx("GET", "/healthz")
	s.Handler(ctx)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "pool closed")
}

func TestAdminServer_Stats(t *testing.T) {
	s := newTestAdmin(WithStats(func() interface{} {
		return map[string]int{"workers": 4}
	}))

	ctx := newRequestCtx("GET", "/stats")
	s.Handler(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	assert.JSONEq(t, `{"workers":4}`, string(ctx.Response.Body()))

	ctx = newRequestCtx("GET", "/stats")
	newTestAdmin().Handler(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestAdminServer_RoutingErrors(t *testing.T) {
	s := newTestAdmin()

	ctx := newRequestCtx("POST", "/healthz")
	s.Handler(ctx)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())

	ctx = newRequestCtx("GET", "/nope")
	s.Handler(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestAdminServer_StatsPanicRecovered(t *testing.T) {
	s := newTestAdmin(WithStats(func() interface{} { panic("boom") }))

	ctx := newRequestCtx("GET", "/stats")
	s.Handler(ctx)
	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
}

func TestAdminServer_MetricsOverInmemoryListener(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "taskpool_test_total",
		Help: "test counter",
	}).Add(3)

	s := newTestAdmin(WithGatherer(reg))
	ln := fasthttputil.NewInmemoryListener()

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(ln) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return ln.Dial()
		},
	}}

	var body string
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://admin/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, strings.Contains(body, "taskpool_test_total 3"), fmt.Sprintf("metrics body:\n%s", body))
	assert.NotEmpty(t, s.ListeningAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, <-serveErr)
}
