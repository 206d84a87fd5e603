package gtfsrt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/utils"
)

// CacheMetrics receives cell outcomes. Implementations must be safe for
// concurrent use.
type CacheMetrics interface {
	CacheHit(cell string)
	CacheMiss(cell string)
	CacheStale(cell string)
}

// Cell caches the result of one upstream call for a TTL. Concurrent refreshes
// of the same cell share a single upstream call. When a refresh fails the
// last value is served, however old; Get fails only when nothing was ever
// cached. A zero TTL disables caching.
type Cell[T any] struct {
	name    string
	ttl     time.Duration
	clock   utils.Clock
	logger  *slog.Logger
	metrics CacheMetrics

	mu    sync.Mutex
	stamp time.Time
	data  T
	has   bool

	group singleflight.Group
}

// NewCell builds a cell. A nil clock uses the system clock.
func NewCell[T any](name string, ttl time.Duration, clock utils.Clock, logger *slog.Logger, m CacheMetrics) *Cell[T] {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Cell[T]{
		name:    name,
		ttl:     ttl,
		clock:   clock,
		logger:  logging.OrDefault(logger),
		metrics: m,
	}
}

// Disabled reports whether the cell passes every call through.
func (c *Cell[T]) Disabled() bool { return c.ttl <= 0 }

func (c *Cell[T]) fresh() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.has && c.clock.Now().Sub(c.stamp) < c.ttl {
		return c.data, true
	}
	var zero T
	return zero, false
}

// Get returns the cached value or refreshes it with fetch.
func (c *Cell[T]) Get(ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	if c.Disabled() {
		return fetch(ctx)
	}
	if v, ok := c.fresh(); ok {
		c.hit()
		return v, nil
	}

	v, err, _ := c.group.Do(c.name, func() (any, error) {
		// a caller that waited on the previous refresh may find it fresh
		if v, ok := c.fresh(); ok {
			return v, nil
		}
		c.miss()
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.data, c.stamp, c.has = v, c.clock.Now(), true
		c.mu.Unlock()
		return v, nil
	})
	if err == nil {
		return v.(T), nil
	}

	c.mu.Lock()
	stale, has := c.data, c.has
	c.mu.Unlock()
	if has {
		c.stale()
		logging.LogWarn(c.logger, "refresh failed, serving cached data", err, slog.String("cell", c.name))
		return stale, nil
	}
	var zero T
	return zero, err
}

func (c *Cell[T]) hit() {
	if c.metrics != nil {
		c.metrics.CacheHit(c.name)
	}
}

func (c *Cell[T]) miss() {
	if c.metrics != nil {
		c.metrics.CacheMiss(c.name)
	}
}

func (c *Cell[T]) stale() {
	if c.metrics != nil {
		c.metrics.CacheStale(c.name)
	}
}
