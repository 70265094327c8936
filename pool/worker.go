package pool

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// WorkerState is the observable state of a worker goroutine.
type WorkerState int32

const (
	// StateIdle means the worker is waiting on the shared queue.
	StateIdle WorkerState = iota
	// StateExecuting means the worker is running a job.
	StateExecuting
	// StateStopped means the worker saw the closed queue and returned.
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is a worker instance
type Worker struct {
	// the worker id
	id int

	// closed when the worker goroutine returns, set to nil once joined
	handle chan struct{}

	// queue from which the worker consumes jobs
	jobs *jobQueue

	// used to signal up a layer that a job has been picked up
	progress *progress

	state atomic.Int32

	log     *slog.Logger
	metrics *Metrics
	onPanic PanicHandler
}

func newWorker(id int, jobs *jobQueue, progress *progress, log *slog.Logger, metrics *Metrics, onPanic PanicHandler) *Worker {
	return &Worker{
		id:       id,
		jobs:     jobs,
		progress: progress,
		log:      log,
		metrics:  metrics,
		onPanic:  onPanic,
		handle:   make(chan struct{}),
	}
}

// ID returns the worker's identifier, its index in the pool.
func (w *Worker) ID() int { return w.id }

// State returns what the worker is doing right now.
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

func (w *Worker) start() {
	go w.run()
}

func (w *Worker) run() {
	w.log.Debug(fmt.Sprintf("starting worker %d", w.id))

	defer func() {
		w.state.Store(int32(StateStopped))
		w.progress.done()
		close(w.handle)
		w.log.Info(fmt.Sprintf("worker %d has been stopped", w.id))
	}()

	for {
		// the queue lock is only held for the receive itself
		job, ok := w.jobs.pop()
		if !ok {
			w.log.Debug(fmt.Sprintf("stopping worker %d with closed job queue", w.id))
			return
		}

		// notify that the job is "Active" before it runs
		w.progress.emit()
		w.metrics.started()

		w.log.Debug(fmt.Sprintf("worker %d got a job; executing", w.id))
		w.execute(job)
	}
}

// execute runs a single job. A panic is contained to this invocation.
func (w *Worker) execute(job Job) {
	w.state.Store(int32(StateExecuting))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			w.metrics.panicked()
			w.log.Error(fmt.Sprintf("worker %d recovered from a panicking job", w.id),
				"panic", fmt.Sprint(rec), "stack", string(debug.Stack()))

			if w.onPanic != nil {
				w.onPanic(w.id, rec)
			}
		}

		w.metrics.finished(time.Since(start))
		w.state.Store(int32(StateIdle))
	}()

	job()
}

// join blocks until the worker goroutine has returned. Joining an already
// joined worker is a no-op.
func (w *Worker) join() {
	if w.handle == nil {
		return
	}

	<-w.handle
	w.handle = nil
}
