package concurrency

// Stats is a point-in-time snapshot of a WorkerPool
type Stats struct {
	Name             string  `json:"name"`
	Backpressure     string  `json:"backpressure"`
	Workers          int     `json:"workers"`
	Idle             int     `json:"idle"`
	Running          int     `json:"running"`
	Terminated       int     `json:"terminated"`
	PeakRunning      int     `json:"peak_running"`
	Pending          int     `json:"pending"`
	QueueCapacity    int     `json:"queue_capacity"`
	QueueUtilization float64 `json:"queue_utilization"` // percent
	Submitted        int64   `json:"submitted"`
	Completed        int64   `json:"completed"` // includes faulted tasks
	Faulted          int64   `json:"faulted"`
	Rejected         int64   `json:"rejected"`
	Closed           bool    `json:"closed"`
}

// Stats returns current pool statistics
func (wp *WorkerPool) Stats() Stats {
	s := Stats{
		Name:          wp.name,
		Backpressure:  wp.policy.String(),
		Workers:       len(wp.workers),
		PeakRunning:   int(wp.peakRunning.Load()),
		Pending:       wp.queue.size(),
		QueueCapacity: wp.queue.capacity,
		Submitted:     wp.submitted.Load(),
		Completed:     wp.completed.Load(),
		Faulted:       wp.faulted.Load(),
		Rejected:      wp.rejected.Load(),
		Closed:        wp.IsClosed(),
	}
	for _, st := range wp.WorkerStates() {
		switch st {
		case WorkerIdle:
			s.Idle++
		case WorkerRunning:
			s.Running++
		case WorkerTerminated:
			s.Terminated++
		}
	}
	if s.QueueCapacity > 0 {
		s.QueueUtilization = float64(s.Pending) / float64(s.QueueCapacity) * 100.0
	}
	return s
}

// WorkerStates returns the state of every worker, indexed by worker id
func (wp *WorkerPool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(wp.workers))
	for i, w := range wp.workers {
		states[i] = WorkerState(w.state.Load())
	}
	return states
}
