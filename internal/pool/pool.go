// Package pool provides the bounded set of workers that run submitted units
// of work. Submission never blocks while the queue has room, which lets the
// scheduler submit while holding its status table lock.
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/specialistvlad/stepgridgo/internal/ctxlog"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pool is closed")

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("pool queue is full")

// Pool runs tasks on a fixed number of worker goroutines.
type Pool struct {
	ctx     context.Context
	queue   chan func()
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts a pool with the given number of workers and queue capacity.
// A non-positive worker count means runtime.NumCPU().
func New(ctx context.Context, workers, capacity int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if capacity < 0 {
		capacity = 0
	}

	p := &Pool{
		ctx:   ctx,
		queue: make(chan func(), capacity),
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", workers, "capacity", capacity)
	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// Submit queues task for execution. It fails instead of blocking when the
// queue is full.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.pending.Add(1)
	select {
	case p.queue <- task:
		return nil
	default:
		p.pending.Done()
		return ErrQueueFull
	}
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Close stops accepting work, lets queued tasks finish and stops the workers.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.workers.Wait()
}

// worker is the core processing loop for a single worker.
func (p *Pool) worker(workerID int) {
	defer p.workers.Done()
	logger := ctxlog.FromContext(p.ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for task := range p.queue {
		p.run(task)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// run executes task and marks it done even if it panics. Tasks are expected
// to recover their own panics; one that escapes is logged and swallowed so
// the worker survives.
func (p *Pool) run(task func()) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(p.ctx).Error("Task panicked.", "panic", r)
		}
	}()
	task()
}
