package pool

// Job is a unit of work handed to the pool. It takes no arguments, returns
// nothing and is invoked exactly once by exactly one worker.
type Job func()

// PanicHandler is called with the worker id and the recovered value whenever
// a job panics. The worker that ran the job keeps serving the queue.
type PanicHandler func(workerID int, recovered any)
