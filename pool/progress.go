package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrProgressClosed is returned by a poll once every worker has exited and
// no progress signal is left.
var ErrProgressClosed = errors.New("progress channel is closed, all workers have exited")

// progress carries one signal per dispatched job from the workers (many
// producers) to the pool owner (one consumer). Signals are counted rather
// than buffered in a channel so a worker never blocks on emitting one.
type progress struct {
	mu        sync.Mutex
	pending   uint64
	producers int

	// notify holds at most one wake-up token for a waiting receiver
	notify chan struct{}

	// closed is closed once the last producer has gone away
	closed chan struct{}

	emitted atomic.Uint64
}

func newProgress(producers int) *progress {
	p := &progress{
		producers: producers,
		notify:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}

	if producers == 0 {
		close(p.closed)
	}

	return p
}

// emit records that one job has been dequeued and is about to run.
func (p *progress) emit() {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	p.emitted.Add(1)
	p.wake()
}

// done is called by a producer when it exits. The last call closes the stream.
func (p *progress) done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.producers == 0 {
		return
	}

	p.producers--
	if p.producers == 0 {
		close(p.closed)
	}
}

// recv blocks until a signal can be consumed. It returns ErrProgressClosed
// once every producer has exited and no signal is left.
func (p *progress) recv(ctx context.Context) error {
	for {
		ok, closed := p.take()
		if ok {
			return nil
		}

		if closed {
			return ErrProgressClosed
		}

		select {
		case <-p.notify:
		case <-p.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tryRecv consumes a signal only if one is already pending.
func (p *progress) tryRecv() bool {
	ok, _ := p.take()
	return ok
}

func (p *progress) take() (ok bool, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending > 0 {
		p.pending--
		if p.pending > 0 {
			// another receiver may be parked on notify
			p.wake()
		}
		return true, false
	}

	return false, p.producers == 0
}

func (p *progress) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// total is the number of signals emitted so far, consumed or not.
func (p *progress) total() uint64 {
	return p.emitted.Load()
}
