package queuez

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/zoobzio/queuez/internal/logging"
)

// Executor runs submitted tasks asynchronously. Parallel queues accept an external
// Executor through WithExecutor and never close one they do not own.
type Executor interface {
	Submit(task func()) error
}

// WorkerPool is a fixed set of worker goroutines draining an unbounded FIFO.
// Submit never blocks; backpressure, when wanted, is the queue's job.
type WorkerPool struct {
	logger    *slog.Logger
	tasks     *queue.Queue
	cond      *sync.Cond
	wg        sync.WaitGroup
	mu        sync.Mutex
	workers   int
	closed    bool
	completed atomic.Int64
	panics    atomic.Int64
}

// NewWorkerPool starts workers goroutines. If workers <= 0 it defaults to
// runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &WorkerPool{
		logger:  logging.Component("pool"),
		tasks:   queue.New(),
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}
	return p
}

// Submit enqueues task, returning ErrPoolClosed once the pool is closed.
func (p *WorkerPool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.tasks.Add(task)
	p.cond.Signal()
	return nil
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks.Length()
}

// Completed returns the number of tasks that have finished, panicked or not.
func (p *WorkerPool) Completed() int64 {
	return p.completed.Load()
}

// Panics returns the number of tasks that panicked.
func (p *WorkerPool) Panics() int64 {
	return p.panics.Load()
}

// Close stops intake, lets the workers finish every queued task, and waits for
// them to exit. It is idempotent.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.tasks.Length() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.tasks.Length() == 0 {
			p.mu.Unlock()
			return
		}
		task, ok := p.tasks.Remove().(func())
		p.mu.Unlock()

		if ok {
			p.execute(id, task)
		}
	}
}

// execute runs the task, recovering from panics to keep the worker alive.
func (p *WorkerPool) execute(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("task panicked", "worker_id", id, "panic", fmt.Sprint(r))
		}
		p.completed.Add(1)
	}()
	task()
}

var _ Executor = (*WorkerPool)(nil)
