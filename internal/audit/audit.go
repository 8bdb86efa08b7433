// Package audit writes a best-effort record of every ingest attempt to
// PostgreSQL. It is a side channel: nothing in the in-memory index reads
// from it, and its unavailability never blocks or fails an ingest.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/arlobridge/invertex/pkg/postgres"
	"github.com/arlobridge/invertex/pkg/resilience"
)

// Outcome is the result of one ingest attempt, as recorded in the audit
// table's outcome column.
type Outcome string

const (
	OutcomeIndexed         Outcome = "INDEXED"
	OutcomeSkippedDuplicate Outcome = "SKIPPED_DUPLICATE"
	OutcomeReadError       Outcome = "READ_ERROR"
)

// Record is one ingest attempt.
type Record struct {
	Filename string
	DocID    *uint64
	ByteSize int
	Outcome  Outcome
}

// Log writes Records to Postgres, wrapped in a circuit breaker and retry so
// a database outage degrades to dropped audit rows rather than propagating
// failures back into ingest.
type Log struct {
	db      *postgres.Client
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// New wraps db in an audit Log. db may be nil, in which case Write is a
// no-op; the core service passes nil when it cannot connect to Postgres.
func New(db *postgres.Client) *Log {
	logger := slog.Default().With("component", "audit-log")
	breaker := resilience.NewCircuitBreaker("audit-postgres", resilience.CircuitBreakerConfig{
		OnStateChange: func(from, to resilience.State) {
			switch to {
			case resilience.StateOpen:
				logger.Warn("postgres unreachable, ingest audit records will be dropped until the circuit recovers")
			case resilience.StateClosed:
				if from != resilience.StateClosed {
					logger.Info("postgres reachable again, resuming ingest audit writes")
				}
			}
		},
	})
	return &Log{
		db:      db,
		breaker: breaker,
		logger:  logger,
	}
}

// State reports the current state of the underlying circuit breaker, for
// exporting as a gauge. Safe to call on a nil Log.
func (l *Log) State() resilience.State {
	if l == nil {
		return resilience.StateClosed
	}
	return l.breaker.GetState()
}

// Write records rec, best-effort. It never returns an error to the caller;
// failures are logged and dropped.
func (l *Log) Write(ctx context.Context, rec Record) {
	if l == nil || l.db == nil {
		return
	}

	err := l.breaker.Execute(func() error {
		return resilience.Retry(ctx, "audit-write", resilience.RetryConfig{MaxAttempts: 2}, func() error {
			return resilience.WithTimeout(ctx, 2*time.Second, "audit-write", func(writeCtx context.Context) error {
				_, err := l.db.DB.ExecContext(writeCtx,
					`INSERT INTO ingest_audit (filename, doc_id, byte_size, outcome, ingested_at)
					 VALUES ($1, $2, $3, $4, now())
					 ON CONFLICT (filename) DO UPDATE SET
					   doc_id = EXCLUDED.doc_id,
					   byte_size = EXCLUDED.byte_size,
					   outcome = EXCLUDED.outcome,
					   ingested_at = now()`,
					rec.Filename, rec.DocID, rec.ByteSize, string(rec.Outcome),
				)
				return err
			})
		})
	})
	if err != nil {
		l.logger.Warn("audit write failed, dropping record", "filename", rec.Filename, "error", err)
	}
}
