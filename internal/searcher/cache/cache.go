// Package cache memoises search results in Redis. Keys carry the index
// generation, so a reload makes every earlier entry unreachable. Redis
// failures degrade to uncached searches behind a circuit breaker.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Backend computes results on a miss. *executor.Executor satisfies it.
type Backend interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	Generation() uint64
}

// Normalizer maps a query to its index tokens.
type Normalizer func(text string) []string

type QueryCache struct {
	store     Store
	backend   Backend
	normalize Normalizer
	ttl       time.Duration
	group     singleflight.Group
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// New wraps backend with a cache in store. m may be nil.
func New(store Store, backend Backend, normalize Normalizer, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	logger := slog.Default().With("component", "query-cache")
	return &QueryCache{
		store:     store,
		backend:   backend,
		normalize: normalize,
		ttl:       ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			OnStateChange: func(name string, to resilience.State) {
				logger.Warn("cache circuit changed state", "breaker", name, "state", to.String())
			},
		}),
		metrics: m,
		logger:  logger,
	}
}

// Search returns a cached result when one exists for the current
// generation and computes it otherwise. Concurrent misses for the same key
// share one computation.
func (c *QueryCache) Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	start := time.Now()
	key := c.Key(c.backend.Generation(), query, limit)
	if result, ok := c.get(ctx, key); ok {
		result.Query = query
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
			c.metrics.SearchLatency.WithLabelValues("hit").Observe(time.Since(start).Seconds())
		}
		return result, nil
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := c.backend.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		c.set(ctx, c.Key(result.Generation, query, limit), result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	shared := *val.(*executor.SearchResult)
	shared.Query = query
	return &shared, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data string
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Debug("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Generation is the backend's current generation.
func (c *QueryCache) Generation() uint64 {
	return c.backend.Generation()
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key derives the cache key. Queries with the same set of index tokens
// share a key, since conjunctive results do not depend on term order.
func (c *QueryCache) Key(generation uint64, query string, limit int) string {
	tokens := c.normalize(query)
	sort.Strings(tokens)
	uniq := tokens[:0]
	for i, t := range tokens {
		if i == 0 || t != tokens[i-1] {
			uniq = append(uniq, t)
		}
	}
	raw := fmt.Sprintf("%s|limit=%d", strings.Join(uniq, ","), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, generation, hash[:16])
}
