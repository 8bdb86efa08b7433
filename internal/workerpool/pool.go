// Package workerpool implements a fixed-size worker pool that drains a
// bounded-in-practice FIFO queue of job closures. It is the Go idiom for the
// mpsc-channel thread pool in the original prototype
// (original_source/src/thread_pool.rs), rebuilt around a mutex and condition
// variable as the design calls for, rather than a channel, so shutdown can
// broadcast-wake every idle worker in one step.
package workerpool

import (
	"log/slog"
	"runtime"
	"sync"
)

// Job is a unit of work submitted to the pool.
type Job func()

// Pool is a fixed-size set of worker goroutines draining a shared FIFO
// queue. Submit enqueues work; Shutdown blocks until every enqueued job
// (including ones submitted concurrently with the shutdown call) has run.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Job
	shutdown bool
	active   int
	size     int
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New creates a Pool with size worker goroutines. size <= 0 is treated as
// runtime.NumCPU(), with a floor of 1.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:   size,
		logger: slog.Default().With("component", "worker-pool"),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "workers", size)
	return p
}

// Submit enqueues job for execution by the next available worker. Submit
// after Shutdown has been called is a no-op; the job is silently dropped.
func (p *Pool) Submit(job Job) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		p.logger.Warn("job submitted after shutdown, dropping")
		return
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.cond.Signal()
}

// Shutdown signals that no further submissions will occur, wakes every
// idle worker, and blocks until all workers have drained the queue and
// exited.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	p.logger.Info("worker pool shut down")
}

// QueueDepth reports the number of jobs currently waiting to run. It is an
// observability signal only; nothing in submit/shutdown semantics depends
// on it.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ActiveWorkers reports how many workers are currently executing a job.
func (p *Pool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Size returns the number of worker goroutines the pool was created with.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.With("worker_id", id)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.shutdown {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.run(log, job)

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

// run executes job, recovering from a panic so a single bad job never kills
// the worker goroutine.
func (p *Pool) run(log *slog.Logger, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked, worker resuming", "panic", r)
		}
	}()
	job()
}
