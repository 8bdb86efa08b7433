package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arlobridge/invertex/pkg/kafka"
)

// Stats is the aggregate view exposed at /api/v1/analytics.
type Stats struct {
	TotalSearches    int64   `json:"total_searches"`
	TotalDocsIndexed int64   `json:"total_docs_indexed"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	ZeroResultCount  int64   `json:"zero_result_count"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	P95LatencyMs     int64   `json:"p95_latency_ms"`
	QueriesPerMinute float64 `json:"queries_per_minute"`
}

// Aggregator consumes DocumentIndexedEvent/SearchServedEvent messages from
// Kafka and maintains running counters, in the shape of the teacher's
// internal/analytics.Aggregator, narrowed to invertex's two event kinds.
type Aggregator struct {
	mu        sync.RWMutex
	searches  atomic.Int64
	docs      atomic.Int64
	cacheHits atomic.Int64
	cacheMiss atomic.Int64
	zeroHits  atomic.Int64
	latencies []int64
	startTime time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator wraps consumer. consumer may be nil, in which case Start is
// a no-op and Stats reports all zeroes.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies: make([]int64, 0, 1024),
		startTime: time.Now(),
		consumer:  consumer,
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start runs the consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// Handler returns the kafka.MessageHandler that feeds this aggregator.
func (a *Aggregator) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if docEvent, err := kafka.DecodeJSON[DocumentIndexedEvent](value); err == nil && docEvent.Type == EventDocumentIndexed {
			a.docs.Add(1)
			return nil
		}
		searchEvent, err := kafka.DecodeJSON[SearchServedEvent](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		a.recordSearch(searchEvent)
		return nil
	}
}

func (a *Aggregator) recordSearch(event SearchServedEvent) {
	a.searches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMiss.Add(1)
	}
	if event.TotalResults == 0 {
		a.zeroHits.Add(1)
	}
	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.mu.Unlock()
}

// Stats returns a snapshot of the current aggregate counters.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalSearches:    a.searches.Load(),
		TotalDocsIndexed: a.docs.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMiss.Load(),
		ZeroResultCount:  a.zeroHits.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := append([]int64(nil), a.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P95LatencyMs = sorted[(95*len(sorted))/100]
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}
