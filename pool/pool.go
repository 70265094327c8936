// Package pool implements a fixed-size worker pool that runs submitted jobs
// on background goroutines and reports progress back to its owner.
package pool

import "context"

type Pool interface {
	// Execute queues a job for exactly one worker. It never blocks on the
	// workers and fails only once the pool has been stopped.
	Execute(Job) error

	// UpdatedJobCount waits for the next progress signal and returns the job
	// count after accounting for it.
	UpdatedJobCount() (uint64, error)

	// UpdatedJobCountContext is UpdatedJobCount with cancellation.
	UpdatedJobCountContext(context.Context) (uint64, error)

	// JobCount returns the job count as of the last successful poll.
	JobCount() uint64

	// Stop closes the job queue and waits for every worker to drain it and
	// exit. It is safe to call more than once.
	Stop() error
}
