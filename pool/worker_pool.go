package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	ErrWorkerPoolClosed = errors.New("worker pool is not active")
	ErrInvalidPoolSize  = errors.New("worker pool size must be greater than zero")
	ErrNilJob           = errors.New("job must not be nil")
)

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithLogger sets the logger used by the pool and its workers.
func WithLogger(log *slog.Logger) Option {
	return func(p *WorkerPool) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMetrics makes the pool report to the given collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *WorkerPool) {
		p.metrics = m
	}
}

// WithPanicHandler registers a callback for jobs that panic.
func WithPanicHandler(h PanicHandler) Option {
	return func(p *WorkerPool) {
		p.onPanic = h
	}
}

// WorkerPool runs jobs on a fixed set of workers sharing one unbounded queue.
type WorkerPool struct {
	// queue from which workers consume jobs, the pool is its only producer
	jobs *jobQueue

	// stream of "job started" signals coming back from the workers
	progress *progress

	// ensure the pool can only be stopped once
	stop sync.Once

	workers []*Worker

	// number of progress signals consumed by the owner
	jobCount atomic.Uint64

	log     *slog.Logger
	metrics *Metrics
	onPanic PanicHandler
}

var _ Pool = (*WorkerPool)(nil)

// NewWorkerPool creates a pool of size workers. The workers are started
// before it returns and block on the empty queue until jobs arrive.
func NewWorkerPool(size uint, opts ...Option) (*WorkerPool, error) {
	if size == 0 {
		return nil, ErrInvalidPoolSize
	}

	p := &WorkerPool{
		jobs:     newJobQueue(),
		progress: newProgress(int(size)),
		workers:  make([]*Worker, size),
		log:      slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.log.Info(fmt.Sprintf("starting worker pool with %d workers", size))
	p.startWorkers()

	return p, nil
}

// MustNewWorkerPool is like NewWorkerPool but panics if size is zero.
func MustNewWorkerPool(size uint, opts ...Option) *WorkerPool {
	p, err := NewWorkerPool(size, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *WorkerPool) startWorkers() {
	for i := 0; i < len(p.workers); i++ {
		w := newWorker(i, p.jobs, p.progress, p.log, p.metrics, p.onPanic)
		p.workers[i] = w
		w.start()
	}
}

// Execute adds a job to the WorkerPool. The queue is unbounded so this only
// waits for the queue lock, never for a free worker.
func (p *WorkerPool) Execute(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.metrics.enqueued()
	if err := p.jobs.push(job); err != nil {
		p.metrics.rejected()
		return fmt.Errorf("%w: %w", ErrWorkerPoolClosed, err)
	}

	p.metrics.submitted()
	return nil
}

// UpdatedJobCount blocks until a worker has picked up one more job, then
// returns the incremented job count. After every worker has exited and all
// signals are consumed it logs the condition and returns ErrProgressClosed
// with the count unchanged.
func (p *WorkerPool) UpdatedJobCount() (uint64, error) {
	return p.UpdatedJobCountContext(context.Background())
}

func (p *WorkerPool) UpdatedJobCountContext(ctx context.Context) (uint64, error) {
	if err := p.progress.recv(ctx); err != nil {
		if errors.Is(err, ErrProgressClosed) {
			p.log.Warn("could not update job count", "error", err.Error())
		}
		return p.jobCount.Load(), err
	}

	return p.jobCount.Add(1), nil
}

// TryUpdateJobCount consumes a progress signal only if one is pending. It
// never blocks.
func (p *WorkerPool) TryUpdateJobCount() (uint64, bool) {
	if !p.progress.tryRecv() {
		return p.jobCount.Load(), false
	}
	return p.jobCount.Add(1), true
}

func (p *WorkerPool) JobCount() uint64 {
	return p.jobCount.Load()
}

// Started returns how many jobs workers have picked up so far, without
// consuming any progress signal.
func (p *WorkerPool) Started() uint64 {
	return p.progress.total()
}

// Size returns the number of workers in the pool.
func (p *WorkerPool) Size() int {
	return len(p.workers)
}

// Pending returns the number of jobs waiting in the queue.
func (p *WorkerPool) Pending() int {
	return p.jobs.len()
}

// Workers returns the pool's workers in creation order.
func (p *WorkerPool) Workers() []*Worker {
	workers := make([]*Worker, len(p.workers))
	copy(workers, p.workers)
	return workers
}

// Stop closes the job queue, which is the only signal the workers get, then
// joins them in creation order. Queued and in-flight jobs run to completion
// first, so a long job delays Stop until it returns.
func (p *WorkerPool) Stop() error {
	p.stop.Do(func() {
		p.log.Info("stopping worker pool")

		p.jobs.close()

		for _, w := range p.workers {
			p.log.Debug(fmt.Sprintf("shutting down worker %d", w.id))
			w.join()
		}

		p.log.Info("worker pool has been stopped")
	})
	return nil
}

// Close is Stop, so a pool can be released with defer.
func (p *WorkerPool) Close() error {
	return p.Stop()
}
