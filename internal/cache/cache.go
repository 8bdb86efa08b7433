// Package cache wraps the query planner with a Redis-backed cache of
// query -> SearchResult, collapsing concurrent identical queries
// with singleflight. A cache miss, error, or unavailable Redis always falls
// through to a live query, so the cache degrades to uncached operation
// rather than failing a search.
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

	"github.com/arlobridge/invertex/internal/index"
	"github.com/arlobridge/invertex/pkg/config"
	pkgredis "github.com/arlobridge/invertex/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// QueryCache is grounded on the teacher's internal/searcher/cache, adapted
// to invertex's AND-only index.SearchResult instead of the teacher's
// AND/OR/NOT executor.SearchResult.
type QueryCache struct {
	client *pkgredis.Client
	ttl    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New builds a QueryCache. client may be nil, in which case every Get is a
// miss and Set is a no-op, so the query planner works uncached.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		ttl:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string) (*index.SearchResult, bool) {
	if c.client == nil {
		return nil, false
	}
	key := c.buildKey(query)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result index.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, result *index.SearchResult) {
	if c.client == nil {
		return
	}
	key := c.buildKey(query)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached SearchResult for query if present; otherwise
// it computes one via computeFn, with concurrent identical queries
// collapsed into a single computeFn call.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	computeFn func() *index.SearchResult,
) (*index.SearchResult, bool) {
	if result, ok := c.Get(ctx, query); ok {
		return result, true
	}
	key := c.buildKey(query)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query); ok {
			return result, nil
		}
		result := computeFn()
		c.Set(ctx, query, result)
		return result, nil
	})
	return val.(*index.SearchResult), false
}

// Invalidate flushes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns cumulative hit/miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey normalizes the query to its distinct, sorted terms so that
// queries differing only in term order or duplicate terms share a cache
// entry, matching the AND-only planner's own term-set semantics.
func (c *QueryCache) buildKey(query string) string {
	terms := strings.Fields(strings.ToLower(query))
	sort.Strings(terms)
	distinct := terms[:0]
	for i, t := range terms {
		if i == 0 || t != terms[i-1] {
			distinct = append(distinct, t)
		}
	}
	hash := sha256.Sum256([]byte(strings.Join(distinct, ",")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
