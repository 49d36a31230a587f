package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// stubResult implements Result
type stubResult struct {
	index int
	err   error
}

func (r *stubResult) GetError() error {
	return r.err
}

// stubJob implements Job
type stubJob struct {
	index    int
	delay    time.Duration
	err      error
	executed *int32
	started  chan struct{}
}

func (j *stubJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.started != nil {
		close(j.started)
	}
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return &stubResult{index: j.index, err: ctx.Err()}
		}
	}
	return &stubResult{index: j.index, err: j.err}
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		workers int
		want    int
	}{
		{5, 5},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := NewPool(tt.workers).workers; got != tt.want {
			t.Errorf("NewPool(%d): expected %d workers, got %d", tt.workers, tt.want, got)
		}
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool(4)
	pool.Start()

	count := 8
	for i := range count {
		// Earlier jobs finish last
		pool.Submit(&stubJob{index: i, delay: time.Duration(count-i) * 5 * time.Millisecond})
	}

	results := pool.Wait()
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, r := range results {
		if got := r.(*stubResult).index; got != i {
			t.Errorf("result %d: expected job %d, got job %d", i, i, got)
		}
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	workers := 3
	pool := NewPool(workers)
	pool.Start()

	var current, peak int32
	for range 20 {
		pool.Submit(jobFunc(func(ctx context.Context) Result {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return &stubResult{}
		}))
	}

	if results := pool.Wait(); len(results) != 20 {
		t.Errorf("expected 20 results, got %d", len(results))
	}
	if p := atomic.LoadInt32(&peak); p > int32(workers) {
		t.Errorf("peak concurrency %d exceeded %d workers", p, workers)
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	boom := errors.New("model overloaded")
	pool.Submit(&stubJob{index: 0, err: boom})
	pool.Submit(&stubJob{index: 1})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !errors.Is(results[0].GetError(), boom) {
		t.Errorf("expected first result to carry the job error, got %v", results[0].GetError())
	}
	if results[1].GetError() != nil {
		t.Errorf("expected second result to succeed, got %v", results[1].GetError())
	}
}

func TestPool_MoreJobsThanQueue(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	var executed int32
	done := make(chan []Result)
	go func() {
		for i := range 100 {
			pool.Submit(&stubJob{index: i, executed: &executed})
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != 100 {
			t.Errorf("expected 100 results, got %d", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked with more jobs than queue slots")
	}
	if atomic.LoadInt32(&executed) != 100 {
		t.Errorf("expected 100 executions, got %d", executed)
	}
}

func TestPool_ContextCancelSkipsQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPoolWithContext(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	var executed int32
	pool.Submit(&stubJob{index: 0, delay: time.Hour, started: started, executed: &executed})
	<-started
	cancel()

	// Returns at once: the context is done
	pool.Submit(&stubJob{index: 1, executed: &executed})

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected only the running job's result, got %d", len(results))
	}
	if !errors.Is(results[0].GetError(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].GetError())
	}
	if atomic.LoadInt32(&executed) != 1 {
		t.Errorf("expected the queued job to be skipped, executed %d", executed)
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		pool.Submit(&stubJob{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_WaitWithoutStart(t *testing.T) {
	pool := NewPool(2)
	if results := pool.Wait(); results != nil {
		t.Errorf("expected no results, got %d", len(results))
	}
}

type jobFunc func(ctx context.Context) Result

func (f jobFunc) Execute(ctx context.Context) Result { return f(ctx) }
