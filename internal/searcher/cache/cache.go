// Package cache memoises search results in Redis. Keys include the index
// generation, so any index mutation makes every older entry unreachable and
// no explicit invalidation is needed on writes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/resilience"
)

const keyPrefix = "jsearch:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable search.
type Key struct {
	Query      string
	Options    executor.Options
	Generation uint64
	Day        string
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend; m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached hits for key, or runs compute and caches
// its result. Concurrent misses for the same key share one computation.
// Backend failures are logged and fall through to compute.
func (c *QueryCache) GetOrCompute(ctx context.Context, key Key, compute func() []executor.Hit) ([]executor.Hit, bool) {
	k := BuildKey(key)
	if hits, ok := c.get(ctx, k); ok {
		c.recordHit()
		return hits, true
	}
	c.recordMiss()
	val, _, _ := c.group.Do(k, func() (any, error) {
		if hits, ok := c.get(ctx, k); ok {
			return hits, nil
		}
		hits := compute()
		c.set(ctx, k, hits)
		return hits, nil
	})
	return val.([]executor.Hit), false
}

// Invalidate drops every cached search. Generation keys make this
// unnecessary for index changes; it exists for operators.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) ([]executor.Hit, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var hits []executor.Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.logger.Debug("cache hit", "key", key)
	return hits, true
}

func (c *QueryCache) set(ctx context.Context, key string, hits []executor.Hit) {
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey hashes everything a result depends on. Queries that normalise to
// the same terms share a key.
func BuildKey(k Key) string {
	limit := k.Options.Limit
	if limit <= 0 {
		limit = executor.DefaultLimit
	}
	kinds := make([]string, 0, len(k.Options.Kinds))
	for _, kind := range k.Options.Kinds {
		kinds = append(kinds, string(kind))
	}
	slices.Sort(kinds)
	kinds = slices.Compact(kinds)

	raw := fmt.Sprintf("q=%s|limit=%d|kinds=%s|from=%s|to=%s|snippet=%d|gen=%d|day=%s",
		strings.Join(normalizer.QueryTerms(k.Query), " "),
		limit,
		strings.Join(kinds, ","),
		timeKey(k.Options.From),
		timeKey(k.Options.To),
		k.Options.SnippetLength,
		k.Generation,
		k.Day,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func timeKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
