package tcp

import "sync/atomic"

// connLimiter bounds concurrent in-flight connections (queued + handling).
// A limit of 0 means unlimited; active connections are still counted.
type connLimiter struct {
	limit    int64
	active   int64
	rejected int64
}

func newConnLimiter(limit int) *connLimiter {
	if limit < 0 {
		limit = 0
	}
	return &connLimiter{limit: int64(limit)}
}

// tryAcquire reserves a slot, failing fast when the limit is reached.
func (l *connLimiter) tryAcquire() bool {
	if l.limit == 0 {
		atomic.AddInt64(&l.active, 1)
		return true
	}
	for {
		cur := atomic.LoadInt64(&l.active)
		if cur >= l.limit {
			atomic.AddInt64(&l.rejected, 1)
			return false
		}
		if atomic.CompareAndSwapInt64(&l.active, cur, cur+1) {
			return true
		}
	}
}

func (l *connLimiter) release() {
	atomic.AddInt64(&l.active, -1)
}

func (l *connLimiter) activeCount() int64 {
	return atomic.LoadInt64(&l.active)
}
