package gtfsrt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluele/gcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	hits, misses, stale atomic.Int32
}

func (m *countingMetrics) CacheHit(string)   { m.hits.Add(1) }
func (m *countingMetrics) CacheMiss(string)  { m.misses.Add(1) }
func (m *countingMetrics) CacheStale(string) { m.stale.Add(1) }

func TestCell_ServesFreshThenRefreshes(t *testing.T) {
	clock := gcache.NewFakeClock()
	m := &countingMetrics{}
	cell := NewCell[int]("alerts", 30*time.Second, clock, nil, m)

	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := cell.Get(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(29 * time.Second)
	v, _ = cell.Get(context.Background(), fetch)
	assert.Equal(t, 1, v, "within TTL the cached value is served")

	clock.Advance(2 * time.Second)
	v, _ = cell.Get(context.Background(), fetch)
	assert.Equal(t, 2, v, "past TTL the value is refreshed")

	assert.Equal(t, int32(1), m.hits.Load())
	assert.Equal(t, int32(2), m.misses.Load())
}

func TestCell_StaleOnFailure(t *testing.T) {
	clock := gcache.NewFakeClock()
	m := &countingMetrics{}
	cell := NewCell[[]string]("alerts", 30*time.Second, clock, nil, m)

	_, err := cell.Get(context.Background(), func(context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	v, err := cell.Get(context.Background(), func(context.Context) ([]string, error) {
		return nil, errors.New("HTTP 503 from upstream")
	})
	require.NoError(t, err, "a stale value hides the failure")
	assert.Equal(t, []string{"a"}, v)
	assert.Equal(t, int32(1), m.stale.Load())
}

func TestCell_FailureWithoutHistory(t *testing.T) {
	cell := NewCell[[]string]("alerts", 30*time.Second, gcache.NewFakeClock(), nil, nil)
	boom := errors.New("boom")

	v, err := cell.Get(context.Background(), func(context.Context) ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, v)
}

func TestCell_ZeroTTLDisables(t *testing.T) {
	cell := NewCell[int]("feed", 0, gcache.NewFakeClock(), nil, nil)
	require.True(t, cell.Disabled())

	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}
	_, _ = cell.Get(context.Background(), fetch)
	v, _ := cell.Get(context.Background(), fetch)
	assert.Equal(t, 2, v)
}

func TestCell_ConcurrentRefreshSharesOneCall(t *testing.T) {
	cell := NewCell[int]("feed", time.Minute, gcache.NewFakeClock(), nil, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cell.Get(context.Background(), fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}
