// Command invertex starts the core search service: it watches a directory
// for files, ingests them into an in-memory inverted index, and serves
// search and document-lookup queries over HTTP.
//
// Usage:
//
//	go run ./cmd/invertex [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arlobridge/invertex/internal/audit"
	"github.com/arlobridge/invertex/internal/cache"
	"github.com/arlobridge/invertex/internal/events"
	"github.com/arlobridge/invertex/internal/httpapi"
	"github.com/arlobridge/invertex/internal/index"
	"github.com/arlobridge/invertex/internal/query"
	"github.com/arlobridge/invertex/internal/watcher"
	"github.com/arlobridge/invertex/internal/workerpool"
	"github.com/arlobridge/invertex/pkg/config"
	"github.com/arlobridge/invertex/pkg/health"
	"github.com/arlobridge/invertex/pkg/kafka"
	"github.com/arlobridge/invertex/pkg/logger"
	"github.com/arlobridge/invertex/pkg/metrics"
	"github.com/arlobridge/invertex/pkg/postgres"
	pkgredis "github.com/arlobridge/invertex/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting invertex core service", "port", cfg.Server.Port, "watch_dir", cfg.Watcher.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	// PostgreSQL — best-effort audit trail only, never gates ingestion.
	var db *postgres.Client
	db, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, audit logging disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
		slog.Info("connected to postgres")
	}
	auditLog := audit.New(db)

	// Two Kafka producers, best-effort, never gating ingestion or search:
	// one feeds the in-process analytics aggregator, the other fans document-
	// indexed notifications out to any external consumer on their own topic.
	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsEvents)
	defer analyticsProducer.Close()
	publisher := events.NewPublisher(analyticsProducer, 10000)
	publisher.Start(ctx)
	defer publisher.Close()

	docProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.DocumentIndexed)
	defer docProducer.Close()
	docPublisher := events.NewPublisher(docProducer, 10000)
	docPublisher.Start(ctx)
	defer docPublisher.Close()

	// Kafka consumer feeding the in-process analytics aggregator.
	aggregator := events.NewAggregator(nil)
	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.AnalyticsEvents, aggregator.Handler())
	go func() {
		if err := analyticsConsumer.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	defer analyticsConsumer.Close()

	// Redis — best-effort query cache, always falls through to a live search.
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}
	queryCache := cache.New(redisClient, cfg.Redis)

	// The in-memory inverted index is the only component on the ingest and
	// search critical path; every side effect above is fire-and-forget.
	idx := index.New(index.WithObserver(index.IngestObserverFunc(func(rec index.DocumentRecord) {
		m.DocsIndexedTotal.Inc()
		docEvent := events.DocumentIndexedEvent{
			Type:       events.EventDocumentIndexed,
			DocumentID: uint64(rec.ID),
			Filename:   rec.Filename,
			TotalTerms: rec.TotalTerms,
			ByteSize:   len(rec.Content),
		}
		publisher.Publish(docEvent)
		docPublisher.Publish(docEvent)
		docID := uint64(rec.ID)
		auditLog.Write(context.Background(), audit.Record{
			Filename: rec.Filename,
			DocID:    &docID,
			ByteSize: len(rec.Content),
			Outcome:  audit.OutcomeIndexed,
		})
	})))

	pool := workerpool.New(cfg.Watcher.WorkerPoolSize)
	defer pool.Shutdown()

	coord, err := watcher.New(cfg.Watcher.Dir, cfg.Watcher.MaxFileBytes, idx, pool, auditLog)
	if err != nil {
		slog.Error("failed to start directory watcher", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := coord.Run(ctx); err != nil {
			slog.Error("directory watcher stopped", "error", err)
		}
	}()
	slog.Info("watching directory", "dir", cfg.Watcher.Dir)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", idx.DocCount())}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		m.CircuitBreakerState.WithLabelValues("audit-postgres").Set(float64(auditLog.State()))
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	planner := query.New(idx, queryCache)
	h := httpapi.New(planner, idx, queryCache, publisher, aggregator.Stats, m)
	chain := httpapi.NewRouter(h, checker, m, cfg.Server.WriteTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("invertex service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("invertex service stopped")
}
