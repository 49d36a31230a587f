package request

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_ReplacesDataAndSeedsPrevious(t *testing.T) {
	var seeds []int
	r := New(context.Background(), Options[int]{
		Default: 1,
		Call: func(_ context.Context, prev int) (int, error) {
			seeds = append(seeds, prev)
			return prev * 10, nil
		},
	})

	require.NoError(t, r.Fetch(context.Background()))
	require.NoError(t, r.Fetch(context.Background()))

	assert.Equal(t, 100, r.Data())
	assert.Equal(t, []int{1, 10}, seeds)
	assert.False(t, r.Loading())
	assert.NoError(t, r.Err())
}

func TestFetch_FailureKeepsDataAndWrapsCause(t *testing.T) {
	cause := errors.New("502 bad gateway")
	fail := true
	r := New(context.Background(), Options[string]{
		Default: "kept",
		Call: func(context.Context, string) (string, error) {
			if fail {
				return "", cause
			}
			return "fresh", nil
		},
	})

	err := r.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, r.Err(), ErrFetchFailed)
	assert.Equal(t, "kept", r.Data())
	assert.False(t, r.Loading())

	// A new fetch clears the previous error
	fail = false
	require.NoError(t, r.Fetch(context.Background()))
	assert.NoError(t, r.Err())
	assert.Equal(t, "fresh", r.Data())
}

func TestFetch_LoadingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := New(context.Background(), Options[int]{
		Call: func(context.Context, int) (int, error) {
			close(started)
			<-release
			return 7, nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- r.Fetch(context.Background()) }()

	<-started
	assert.True(t, r.Loading())
	close(release)
	require.NoError(t, <-done)
	assert.False(t, r.Loading())
}

func TestAutoFetch_RunsOnceWhenEmpty(t *testing.T) {
	var calls atomic.Int32
	r := New(context.Background(), Options[[]string]{
		AutoFetch: true,
		Call: func(context.Context, []string) ([]string, error) {
			calls.Add(1)
			return []string{"a"}, nil
		},
	})
	r.Wait()
	assert.Equal(t, []string{"a"}, r.Data())

	// Changing data never triggers another fetch
	r.SetData([]string{"b"})
	r.SetShouldFetch(true)
	r.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestAutoFetch_SkippedWhenSeeded(t *testing.T) {
	var calls atomic.Int32
	r := New(context.Background(), Options[[]string]{
		Default:   []string{"seed"},
		AutoFetch: true,
		Call: func(context.Context, []string) ([]string, error) {
			calls.Add(1)
			return nil, nil
		},
	})
	r.Wait()
	assert.Zero(t, calls.Load())
}

func TestSetShouldFetch_StartsWhenEmpty(t *testing.T) {
	var calls atomic.Int32
	r := New(context.Background(), Options[int]{
		Call: func(context.Context, int) (int, error) {
			calls.Add(1)
			return 3, nil
		},
	})
	r.Wait()
	assert.Zero(t, calls.Load())

	r.SetShouldFetch(true)
	r.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 3, r.Data())
}

func TestSetDependencies_ComparesByReference(t *testing.T) {
	type figure struct{ ID string }
	fig := &figure{ID: "f1"}

	var calls atomic.Int32
	r := New(context.Background(), Options[int]{
		Default:      1,
		AutoFetch:    true,
		Dependencies: []any{fig, "gpt-4o"},
		Call: func(context.Context, int) (int, error) {
			return int(calls.Add(1)), nil
		},
	})
	r.Wait()
	require.Zero(t, calls.Load(), "seeded data does not fetch on start")

	r.SetDependencies(fig, "gpt-4o")
	r.Wait()
	assert.Zero(t, calls.Load(), "same pointer and equal string are unchanged")

	// An equal value behind a new pointer is a change
	r.SetDependencies(&figure{ID: "f1"}, "gpt-4o")
	r.Wait()
	assert.Equal(t, int32(1), calls.Load())

	r.SetDependencies(&figure{ID: "f1"}, "claude")
	r.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestSetDependencies_IgnoredWhenFetchDisabled(t *testing.T) {
	var calls atomic.Int32
	r := New(context.Background(), Options[int]{
		Call: func(context.Context, int) (int, error) {
			calls.Add(1)
			return 0, nil
		},
	})
	r.SetDependencies("x")
	r.Wait()
	assert.Zero(t, calls.Load())
}

// slowThenFast starts a slow call, then a fast one, and lets the slow one finish last
func slowThenFast(t *testing.T, keepStale bool) (*Request[string], error, error) {
	t.Helper()
	release := make(chan struct{})
	r := New(context.Background(), Options[string]{
		KeepStale: keepStale,
		Call: func(ctx context.Context, _ string) (string, error) {
			if v := ctx.Value(labelKey{}); v == "slow" {
				select {
				case <-release:
				case <-ctx.Done():
					if !keepStale {
						return "", ctx.Err()
					}
					<-release
				}
				return "slow", nil
			}
			return "fast", nil
		},
	})

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- r.Fetch(context.WithValue(context.Background(), labelKey{}, "slow"))
	}()
	require.Eventually(t, r.Loading, time.Second, time.Millisecond)

	fastErr := r.Fetch(context.WithValue(context.Background(), labelKey{}, "fast"))
	close(release)
	return r, <-slowDone, fastErr
}

type labelKey struct{}

func TestFetch_NewerCallSupersedesOlder(t *testing.T) {
	r, slowErr, fastErr := slowThenFast(t, false)

	require.NoError(t, fastErr)
	assert.ErrorIs(t, slowErr, ErrSuperseded)
	assert.Equal(t, "fast", r.Data())
	assert.False(t, r.Loading())
}

func TestFetch_KeepStaleLastResolverWins(t *testing.T) {
	r, slowErr, fastErr := slowThenFast(t, true)

	require.NoError(t, fastErr)
	require.NoError(t, slowErr)
	assert.Equal(t, "slow", r.Data(), "the older call resolved last and overwrote fresher data")
	assert.False(t, r.Loading())
}

func TestOnChange(t *testing.T) {
	var seen []int
	r := New(context.Background(), Options[int]{
		Call:     func(_ context.Context, prev int) (int, error) { return prev + 1, nil },
		OnChange: func(v int) { seen = append(seen, v) },
	})

	require.NoError(t, r.Fetch(context.Background()))
	r.SetData(10)
	r.Update(func(v int) int { return v * 2 })

	assert.Equal(t, []int{1, 10, 20}, seen)
}

func TestSameRef(t *testing.T) {
	s := []int{1, 2}
	m := map[string]int{"a": 1}

	assert.True(t, sameRef(s, s))
	assert.False(t, sameRef(s, []int{1, 2}))
	assert.True(t, sameRef(m, m))
	assert.False(t, sameRef(m, map[string]int{"a": 1}))
	assert.True(t, sameRef(3, 3))
	assert.False(t, sameRef(3, int64(3)))
	assert.True(t, sameRef(nil, nil))
	assert.False(t, sameRef(nil, 0))
}
