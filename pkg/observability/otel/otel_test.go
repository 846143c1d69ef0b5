package otel

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/core/concurrency"
)

func TestInitialize_None(t *testing.T) {
	require.NoError(t, Initialize(context.Background(), Config{Exporter: ExporterNone}))
	assert.False(t, IsInitialized())
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitialize_Invalid(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, Initialize(ctx, Config{Exporter: "jaeger", SampleRate: 1}))
	assert.Error(t, Initialize(ctx, Config{Exporter: ExporterZipkin, SampleRate: 1}))
	assert.Error(t, Initialize(ctx, Config{Exporter: ExporterStdout, SampleRate: 2}))
	assert.False(t, IsInitialized())
}

func TestInitialize_StdoutExportsPoolSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	require.NoError(t, Initialize(ctx, Config{
		ServiceName: "taskpool-test",
		Exporter:    ExporterStdout,
		SampleRate:  1,
		Writer:      &buf,
	}))
	require.True(t, IsInitialized())

	pool, err := concurrency.New(1,
		concurrency.WithLogger(core.NewNopLogger()),
		concurrency.WithTracer(Tracer("taskpool-test")))
	require.NoError(t, err)
	require.NoError(t, pool.Submit(concurrency.NewNamedTask("traced", func(context.Context) error { return nil })))
	require.NoError(t, pool.Close())

	require.NoError(t, Shutdown(ctx))
	assert.False(t, IsInitialized())

	out := buf.String()
	assert.Contains(t, out, "taskpool.execute")
	assert.Contains(t, out, "traced")
	assert.Contains(t, out, "taskpool-test")
}

func TestInitialize_ZipkinPostsSpans(t *testing.T) {
	var posts atomic.Int64
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer collector.Close()

	ctx := context.Background()
	require.NoError(t, Initialize(ctx, Config{
		ServiceName: "taskpool-test",
		Exporter:    ExporterZipkin,
		Endpoint:    collector.URL + "/api/v2/spans",
		SampleRate:  1,
	}))

	_, span := Tracer("zipkin-test").Start(ctx, "op")
	span.End()

	require.NoError(t, Shutdown(ctx))
	assert.Equal(t, int64(1), posts.Load())
}
