// Package events implements the ingest event stream: a buffered publisher
// that emits one document.indexed event per successful ingest to Kafka, and
// a consumer-fed in-memory aggregator that powers /api/v1/analytics.
//
// Grounded on the teacher's internal/analytics/{collector.go,events.go}
// (buffered async publish, drop-on-full backpressure) and
// internal/analytics/aggregator.go (the consumer-side stats accumulator),
// narrowed to invertex's two event kinds: a document was indexed, or a
// search was served (used only for cache-hit-rate/latency stats, never fed
// back into the index).
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/arlobridge/invertex/pkg/kafka"
)

// EventType distinguishes the two kinds of ingest-event-stream messages.
type EventType string

const (
	EventDocumentIndexed EventType = "document_indexed"
	EventSearchServed    EventType = "search_served"
)

// DocumentIndexedEvent is published once per successful (non-duplicate)
// ingest.
type DocumentIndexedEvent struct {
	Type       EventType `json:"type"`
	DocumentID uint64    `json:"document_id"`
	Filename   string    `json:"filename"`
	TotalTerms uint64    `json:"total_terms"`
	ByteSize   int       `json:"byte_size"`
	Timestamp  time.Time `json:"timestamp"`
}

// SearchServedEvent is published once per search request, for analytics
// aggregation only.
type SearchServedEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	TotalResults int       `json:"total_results"`
	CacheHit     bool      `json:"cache_hit"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher buffers events and publishes them to Kafka asynchronously. A
// full buffer drops the event rather than blocking the caller — the ingest
// and search hot paths never wait on Kafka.
type Publisher struct {
	producer *kafka.Producer
	eventCh  chan any
	done     chan struct{}
	logger   *slog.Logger
}

// NewPublisher wraps producer in a buffered async Publisher. producer may
// be nil, in which case Publish and Start are no-ops.
func NewPublisher(producer *kafka.Producer, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Publisher{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "event-publisher"),
	}
}

// Start runs the publish loop until ctx is cancelled, draining any
// remaining buffered events before returning.
func (p *Publisher) Start(ctx context.Context) {
	if p.producer == nil {
		return
	}
	go func() {
		defer close(p.done)
		for {
			select {
			case event, ok := <-p.eventCh:
				if !ok {
					return
				}
				p.publish(context.Background(), event)
			case <-ctx.Done():
				p.drainRemaining()
				return
			}
		}
	}()
	p.logger.Info("event publisher started", "buffer_size", cap(p.eventCh))
}

// Publish enqueues event for asynchronous publication. It never blocks.
func (p *Publisher) Publish(event any) {
	if p.producer == nil {
		return
	}
	select {
	case p.eventCh <- event:
	default:
		p.logger.Warn("event dropped, publisher buffer full")
	}
}

// Close stops accepting new events and waits for the publish loop to exit.
func (p *Publisher) Close() {
	if p.producer == nil {
		return
	}
	close(p.eventCh)
	<-p.done
}

func (p *Publisher) publish(ctx context.Context, event any) {
	if err := p.producer.Publish(ctx, kafka.Event{Key: "invertex", Value: event}); err != nil {
		p.logger.Error("failed to publish event", "error", err)
	}
}

func (p *Publisher) drainRemaining() {
	for {
		select {
		case event, ok := <-p.eventCh:
			if !ok {
				return
			}
			p.publish(context.Background(), event)
		default:
			return
		}
	}
}
