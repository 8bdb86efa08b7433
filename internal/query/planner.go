// Package query implements the thin query planner described in spec.md
// §4.5: it accepts a raw query string and returns the ranked result
// structure from the inverted index, optionally through a cache.
package query

import (
	"context"

	"github.com/arlobridge/invertex/internal/cache"
	"github.com/arlobridge/invertex/internal/index"
)

// Searcher is the subset of *index.Index the planner depends on.
type Searcher interface {
	Search(rawQuery string) index.SearchResult
}

// Planner runs queries against idx, transparently caching results when a
// QueryCache is configured. It performs no query-language work beyond what
// Index.Search already does; the AND-only semantics live entirely there.
type Planner struct {
	idx   Searcher
	cache *cache.QueryCache
}

// New builds a Planner. cache may be nil to run uncached.
func New(idx Searcher, qc *cache.QueryCache) *Planner {
	return &Planner{idx: idx, cache: qc}
}

// Search returns the ranked result for rawQuery, and whether it was served
// from cache.
func (p *Planner) Search(ctx context.Context, rawQuery string) (index.SearchResult, bool) {
	if p.cache == nil {
		return p.idx.Search(rawQuery), false
	}
	result, hit := p.cache.GetOrCompute(ctx, rawQuery, func() *index.SearchResult {
		r := p.idx.Search(rawQuery)
		return &r
	})
	return *result, hit
}
