package pool

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by a push after the queue has been closed.
var ErrQueueClosed = errors.New("job queue has been closed")

// jobQueue is the unbounded FIFO shared by every worker of a pool. The pool
// is its only producer; closing it is the only way to tell workers to stop.
type jobQueue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	jobs   []Job
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// push appends a job to the tail of the queue and wakes one waiting worker.
func (q *jobQueue) push(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.jobs = append(q.jobs, job)
	q.ready.Signal()
	return nil
}

// pop blocks until a job is available or the queue is closed and empty.
// Jobs queued before close are still handed out.
func (q *jobQueue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.ready.Wait()
	}

	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// let the backing array go once the queue drains
		q.jobs = nil
	}

	return job, true
}

// close stops the queue from accepting jobs and wakes every waiting worker.
// It reports whether this call was the one that closed the queue.
func (q *jobQueue) close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.closed = true
	q.ready.Broadcast()
	return true
}

func (q *jobQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
