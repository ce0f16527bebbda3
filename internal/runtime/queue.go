package runtime

import (
	"sync"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

// jobKind distinguishes work executed by the loop goroutine.
type jobKind int

const (
	// jobSubmit runs one rendered call.
	jobSubmit jobKind = iota + 1
	// jobCallback runs a host callback against the VM (timers).
	jobCallback
	// jobReset tears the environment down and boots a new one.
	jobReset
)

type job struct {
	kind       jobKind
	submission bridge.Submission
	epoch      int64
	callback   func()
}

// jobQueue is a thread-safe FIFO queue of jobs.
//
// Enqueue may be called from any goroutine; only the loop goroutine
// dequeues. The buffered signal channel lets the loop wait for work and
// for context cancellation in one select.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // buffered, size 1
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]job, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds j to the back of the queue.
// Returns false if the queue is closed.
func (q *jobQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	// buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front job without blocking.
func (q *jobQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = job{} // release closures for GC
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// DropSubmissions removes every queued submission and returns them.
// Callbacks and resets stay queued.
func (q *jobQueue) DropSubmissions() []bridge.Submission {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dropped []bridge.Submission
	kept := q.jobs[:0]
	for _, j := range q.jobs {
		if j.kind == jobSubmit {
			dropped = append(dropped, j.submission)
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = job{}
	}
	q.jobs = kept
	return dropped
}

// Wait returns a channel that signals when jobs may be available.
func (q *jobQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Closed reports whether Close was called.
func (q *jobQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes the waiter.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
