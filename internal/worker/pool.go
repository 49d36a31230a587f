package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type task struct {
	index int
	job   Job
}

// Pool runs jobs on a fixed number of workers and returns their results in
// submission order. Jobs still queued when the context ends are skipped and
// produce no result.
type Pool struct {
	workers int
	queue   chan task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once

	mu      sync.Mutex
	results []Result
	started bool
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs stop when ctx is cancelled
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		workers: workers,
		queue:   make(chan task, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the workers
func (p *Pool) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	for range p.workers {
		p.wg.Add(1)
		go p.work()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			if p.ctx.Err() != nil {
				return
			}
			r := t.job.Execute(p.ctx)
			p.mu.Lock()
			p.results[t.index] = r
			p.mu.Unlock()
		}
	}
}

// Submit queues a job. It blocks while the queue is full and returns
// immediately once the pool's context is done. Submit must not be called
// after Wait.
func (p *Pool) Submit(job Job) {
	if p.ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	index := len(p.results)
	p.results = append(p.results, nil)
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
	case p.queue <- task{index: index, job: job}:
	}
}

// Wait waits for all submitted jobs and returns their results in submission
// order. A pool that was never started returns nil.
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	defer p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	out := make([]Result, 0, len(p.results))
	for _, r := range p.results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Shutdown stops the workers without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) closeQueue() {
	p.once.Do(func() { close(p.queue) })
}
