package tcp

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnLimiter_FailFast_CapacityExceeded(t *testing.T) {
	t.Parallel()

	l := newConnLimiter(2)

	require.True(t, l.tryAcquire(), "first acquire")
	require.True(t, l.tryAcquire(), "second acquire")
	assert.False(t, l.tryAcquire(), "third acquire must fail fast")
	assert.Equal(t, int64(1), atomic.LoadInt64(&l.rejected))

	l.release()
	assert.True(t, l.tryAcquire(), "acquire after release")
}

func TestConnLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := newConnLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, l.tryAcquire(), "unlimited limiter rejected acquire %d", i)
	}
	assert.Equal(t, int64(100), l.activeCount())
}
