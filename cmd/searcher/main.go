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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/watcher"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/resilience"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"source", cfg.Source.Kind,
		"max_errors", cfg.Search.MaxErrors,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.NewRegistry())
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var redisClient *pkgredis.Client
	cacheOpts := cache.Options{
		LocalSize: cfg.Cache.LocalSize,
		TTL:       cfg.Redis.CacheTTL,
		Metrics:   m,
	}
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache only", "error", err)
		} else {
			defer redisClient.Close()
			cacheOpts.Remote = redisClient
			slog.Info("redis cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache, err := cache.New(cacheOpts)
	if err != nil {
		slog.Error("failed to create query cache", "error", err)
		os.Exit(1)
	}

	var (
		agg     *analytics.Aggregator
		collect *collector.BatchCollector
		events  kafka.Publisher
	)
	if cfg.Analytics.Enabled {
		agg = analytics.NewAggregator(cfg.Analytics.TopQueries)
		if cfg.Kafka.Enabled {
			events = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
			eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents,
				cfg.Kafka.ConsumerGroup+"-analytics", analytics.HandleEvent(agg))
			go func() {
				if err := eventConsumer.Start(ctx); err != nil {
					slog.Error("analytics consumer error", "error", err)
				}
			}()
		} else {
			events = agg.Publisher()
		}
		collect = collector.NewBatchCollector(events, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval).WithMetrics(m)
		collect.Start(ctx)
		defer func() {
			collect.Close()
			events.Close()
		}()
		slog.Info("analytics enabled", "kafka", cfg.Kafka.Enabled)
	}

	var src source.Source
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		src = source.NewPostgresSource(db)
	default:
		src = source.NewFileSource(cfg.Source.Path)
	}

	var engine *indexer.Engine
	engine = indexer.NewEngine(src,
		indexer.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Source.RetryAttempts}),
		indexer.WithMetrics(m),
		indexer.OnReload(func(ctx context.Context, _ index.Stats) {
			if _, err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after reload failed", "error", err)
			}
		}),
		indexer.OnReload(func(ctx context.Context, stats index.Stats) {
			if collect == nil {
				return
			}
			status := engine.LastReload()
			collect.Track(status.Trigger, analytics.IndexRebuiltEvent{
				Type:       analytics.EventIndexRebuilt,
				Trigger:    status.Trigger,
				Source:     status.Source,
				Documents:  stats.Documents,
				Terms:      stats.Terms,
				Postings:   stats.Postings,
				DurationMs: float64(status.Duration.Microseconds()) / 1000,
				Timestamp:  status.At,
			})
		}),
	)
	var ingest *publisher.Publisher
	if cfg.Source.Kind == config.SourcePostgres {
		notifier := publisher.LocalNotifier(engine)
		if cfg.Kafka.Enabled {
			reloadProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexReload)
			defer reloadProducer.Close()
			notifier = publisher.KafkaNotifier(reloadProducer)
		}
		ingest = publisher.New(db, notifier)
		if err := ingest.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare documents table", "error", err)
			os.Exit(1)
		}
	}

	if _, err := engine.Reload(ctx, indexer.TriggerStartup); err != nil {
		slog.Error("initial index build failed", "source", src.Describe(), "error", err)
		os.Exit(1)
	}

	if cfg.Source.Kind == config.SourceFile && cfg.Source.Watch {
		w, err := watcher.New(cfg.Source.Path, cfg.Source.DebounceWindow, engine)
		if err != nil {
			slog.Warn("file watch disabled", "path", cfg.Source.Path, "error", err)
		} else {
			defer w.Close()
			go func() {
				if err := w.Run(ctx); err != nil {
					slog.Error("file watcher stopped", "error", err)
				}
			}()
		}
	}
	engine.StartReloadLoop(ctx, cfg.Source.ReloadInterval)

	if cfg.Kafka.Enabled {
		// No consumer group: every replica reads every reload event.
		reloadConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexReload, "",
			consumer.HandleReload(engine))
		go func() {
			if err := reloadConsumer.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("reload consumer started", "topic", cfg.Kafka.Topics.IndexReload)
	}

	checker := health.NewChecker()
	checker.Register("index", health.PingCheck(func(ctx context.Context) error {
		_, err := engine.Ready()
		return err
	}))
	if redisClient != nil {
		checker.Register("redis", health.OptionalCheck(redisClient.Ping))
	}
	if db != nil {
		// The index keeps serving its last snapshot while postgres is down.
		checker.Register("postgres", health.OptionalCheck(db.Ping))
	}

	exec := executor.New(engine, cfg.Search.Timeout, m)
	opts := []handler.Option{handler.WithCache(queryCache), handler.WithMetrics(m)}
	if collect != nil {
		opts = append(opts, handler.WithCollector(collect))
	}
	h := handler.New(exec, engine, handler.Config{
		MaxErrors:        cfg.Search.MaxErrors,
		MaxErrorsCeiling: cfg.Search.MaxErrorsCeiling,
		MaxQueryLength:   cfg.Search.MaxQueryLength,
	}, opts...)

	mux := http.NewServeMux()
	h.Register(mux)
	if agg != nil {
		analyticsH := analytics.NewHandler(agg).WithBacklog(collect)
		if db != nil {
			store := aggregator.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshots disabled", "error", err)
			} else {
				analyticsH.WithHistory(func(ctx context.Context, limit int) (any, error) {
					return store.ListSnapshots(ctx, limit)
				})
				if cfg.Analytics.SnapshotInterval > 0 {
					store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
				}
			}
		}
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
		mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	}
	if ingest != nil {
		ingesthandler.New(ingest).Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.CORS(middleware.DefaultCORSConfig()),
	}
	if cfg.RateLimit.Enabled {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
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
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
