// Command journalsearchd serves full-text search over journal entries.
//
// It loads every entry from PostgreSQL into the in-memory index, keeps the
// index current from the entry mutation topic, and answers searches over
// HTTP. Redis caching and search analytics are optional.
//
// Usage:
//
//	journalsearchd [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal/feed"
	pgstore "github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal/store/postgres"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/resilience"
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

	if err := run(cfg); err != nil {
		slog.Error("journal search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("journal search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Search.Location()
	if err != nil {
		return err
	}
	slog.Info("starting journal search service", "port", cfg.Server.Port, "timezone", loc.String())

	m := metrics.New()

	var pg *postgres.Client
	err = resilience.Retry(ctx, "connect postgres", resilience.RetryConfigFrom(cfg.Retry), func(ctx context.Context) error {
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		pg = client
		return nil
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pg.Close()
	slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	entries := pgstore.New(pg)
	engine := indexer.NewEngine()
	syncer := journal.NewSyncer(entries, engine, cfg.Store.LoadTimeout, m)
	stats, err := syncer.Resync(ctx)
	if err != nil {
		return fmt.Errorf("initial index load: %w", err)
	}
	slog.Info("index loaded",
		"documents", engine.Size(),
		"terms", engine.TermCount(),
		"added", stats.Added,
		"skipped", stats.Skipped,
	)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		g.Go(func() error { return metrics.Serve(ctx, addr) })
	}

	if len(cfg.Kafka.Brokers) > 0 {
		entryFeed := feed.New(syncer, m, feed.WithLookup(entries))
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EntryMutations, "", entryFeed.Handler(),
			kafka.WithRetry(resilience.RetryConfigFrom(cfg.Retry)))
		g.Go(func() error { return consumer.Start(ctx) })
		slog.Info("entry feed started", "topic", cfg.Kafka.Topics.EntryMutations)
	}

	mux := http.NewServeMux()

	var collector *analytics.Collector
	if cfg.Analytics.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics)
		collector.Start(ctx)
		defer collector.Close()

		aggregator := analytics.NewAggregator()
		eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, "analytics", analytics.HandleEvent(aggregator))
		g.Go(func() error { return eventConsumer.Start(ctx) })

		snapshots := snapshot.NewStore(pg.DB)
		g.Go(func() error { return snapshots.Run(ctx, aggregator, cfg.Analytics.SnapshotInterval) })

		mux.Handle("GET /api/v1/analytics", aggregator)
		mux.HandleFunc("GET /api/v1/analytics/snapshot", snapshots.LatestHandler())
		slog.Info("search analytics enabled", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	checker := health.NewChecker()
	checker.Register("index", true, func(context.Context) error {
		if syncer.LastSync().IsZero() {
			return errors.New("index not loaded")
		}
		return nil
	})
	checker.Register("postgres", true, pg.Ping)
	if redisClient != nil {
		checker.Register("redis", false, redisClient.Ping)
	}

	exec := executor.New(engine, executor.WithLocation(loc))
	h := handler.New(exec, engine, syncer, handler.Config{
		Cache:         queryCache,
		Collector:     collector,
		Metrics:       m,
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxResults:    cfg.Search.MaxResults,
		SnippetLength: cfg.Search.SnippetLength,
		QueryTimeout:  cfg.Search.QueryTimeout,
	})
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("journal search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
