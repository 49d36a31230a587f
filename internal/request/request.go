// Package request tracks one asynchronous value: its data, whether a call is in
// flight, and the last failure. Calls re-run automatically when their declared
// dependencies change.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

var (
	// ErrFetchFailed is the generic failure surfaced to callers. The cause is wrapped.
	ErrFetchFailed = errors.New("failed to fetch data")

	// ErrSuperseded is returned to a caller whose call was overtaken by a newer one
	ErrSuperseded = errors.New("request superseded by a newer call")
)

// Options configures a Request
type Options[T any] struct {
	// Default is the initial data
	Default T

	// Call produces new data. prev is the data held when the call started.
	Call func(ctx context.Context, prev T) (T, error)

	// Dependencies are compared by reference; a change re-runs Call when fetching is enabled
	Dependencies []any

	// AutoFetch enables fetching from the start
	AutoFetch bool

	// IsEmpty decides whether data still needs its first fetch. Defaults to a zero-value check.
	IsEmpty func(T) bool

	// KeepStale lets every call write its result, so the last one to resolve wins
	// regardless of start order. By default a newer call cancels older ones.
	KeepStale bool

	// OnChange is called after data changes
	OnChange func(T)

	Logger *slog.Logger
}

// Request holds {data, loading, error} for one asynchronous call
type Request[T any] struct {
	opts   Options[T]
	base   context.Context
	logger *slog.Logger

	mu          sync.Mutex
	data        T
	loading     bool
	err         error
	shouldFetch bool
	deps        []any
	seq         uint64
	cancel      context.CancelFunc

	wg sync.WaitGroup
}

// New creates a request. Automatic fetches run under ctx.
func New[T any](ctx context.Context, opts Options[T]) *Request[T] {
	if opts.IsEmpty == nil {
		opts.IsEmpty = isZero[T]
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Request[T]{
		opts:        opts,
		base:        ctx,
		logger:      logger,
		data:        opts.Default,
		shouldFetch: opts.AutoFetch,
		deps:        append([]any(nil), opts.Dependencies...),
	}
	if r.shouldFetch && opts.IsEmpty(r.data) {
		r.trigger()
	}
	return r
}

// Data returns the current data
func (r *Request[T]) Data() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Loading reports whether a call is in flight
func (r *Request[T]) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the last failure, or nil
func (r *Request[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Fetch runs Call and blocks until it completes. The current data is passed as the seed.
func (r *Request[T]) Fetch(ctx context.Context) error {
	if r.opts.Call == nil {
		return fmt.Errorf("%w: no call configured", ErrFetchFailed)
	}

	r.mu.Lock()
	r.seq++
	seq := r.seq
	if !r.opts.KeepStale && r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.loading = true
	r.err = nil
	prev := r.data
	r.mu.Unlock()
	defer cancel()

	data, err := r.opts.Call(ctx, prev)

	r.mu.Lock()
	if !r.opts.KeepStale && seq != r.seq {
		r.mu.Unlock()
		r.logger.Debug("discarding superseded response", "seq", seq)
		return ErrSuperseded
	}
	r.loading = false
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		failure := r.err
		r.mu.Unlock()
		r.logger.Debug("fetch failed", "error", err)
		return failure
	}
	r.data = data
	r.mu.Unlock()

	r.changed(data)
	return nil
}

// SetData replaces the data without calling out. It never triggers a fetch.
func (r *Request[T]) SetData(data T) {
	r.mu.Lock()
	r.data = data
	r.mu.Unlock()
	r.changed(data)
}

// Update applies fn to the current data atomically
func (r *Request[T]) Update(fn func(T) T) T {
	r.mu.Lock()
	r.data = fn(r.data)
	data := r.data
	r.mu.Unlock()
	r.changed(data)
	return data
}

// SetShouldFetch enables or disables automatic fetching. Enabling it while the
// data is still empty starts a fetch.
func (r *Request[T]) SetShouldFetch(should bool) {
	r.mu.Lock()
	start := should && !r.shouldFetch && r.opts.IsEmpty(r.data)
	r.shouldFetch = should
	r.mu.Unlock()

	if start {
		r.trigger()
	}
}

// SetDependencies replaces the dependency list and re-fetches when any element
// changed by reference and fetching is enabled.
func (r *Request[T]) SetDependencies(deps ...any) {
	r.mu.Lock()
	changed := !sameDeps(r.deps, deps)
	r.deps = append([]any(nil), deps...)
	start := changed && r.shouldFetch
	r.mu.Unlock()

	if start {
		r.trigger()
	}
}

// Wait blocks until every automatically started fetch has finished
func (r *Request[T]) Wait() {
	r.wg.Wait()
}

func (r *Request[T]) trigger() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Fetch(r.base); err != nil && !errors.Is(err, ErrSuperseded) {
			r.logger.Debug("automatic fetch failed", "error", err)
		}
	}()
}

func (r *Request[T]) changed(data T) {
	if r.opts.OnChange != nil {
		r.opts.OnChange(data)
	}
}

func isZero[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}

func sameDeps(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameRef(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameRef compares reference types by identity and everything else by value
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}
