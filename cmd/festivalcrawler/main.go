// Package main wires together the festival crawler service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/api"
	"github.com/swingradar/festival-crawler/internal/blob"
	blobgcs "github.com/swingradar/festival-crawler/internal/blob/gcs"
	bloblocal "github.com/swingradar/festival-crawler/internal/blob/local"
	"github.com/swingradar/festival-crawler/internal/breaker"
	"github.com/swingradar/festival-crawler/internal/clock/system"
	"github.com/swingradar/festival-crawler/internal/config"
	"github.com/swingradar/festival-crawler/internal/extract"
	"github.com/swingradar/festival-crawler/internal/fetch"
	"github.com/swingradar/festival-crawler/internal/id/uuid"
	"github.com/swingradar/festival-crawler/internal/logging"
	"github.com/swingradar/festival-crawler/internal/metrics"
	"github.com/swingradar/festival-crawler/internal/pipeline"
	"github.com/swingradar/festival-crawler/internal/progress"
	"github.com/swingradar/festival-crawler/internal/progress/sinks"
	"github.com/swingradar/festival-crawler/internal/store/postgres"
	"github.com/swingradar/festival-crawler/internal/urlcheck"
	"github.com/swingradar/festival-crawler/internal/validate"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ids := uuid.New()
	sysClock := system.New()

	breakerMetrics, err := metrics.NewBreakers(registry)
	if err != nil {
		return fmt.Errorf("init breaker metrics: %w", err)
	}
	onBreakerChange := breaker.WithStateListener(breakerMetrics.Listener())

	// Scrape side: validator, fetchers, explorer, extraction.
	validator := urlcheck.New(urlcheck.Config{AllowedDomains: cfg.Crawler.AllowedDomains})

	httpBreaker := breaker.New("http", breakerConfig(cfg.Breakers.HTTP), logger.Named("breaker"), onBreakerChange)
	fetcher := fetch.WithBreaker(fetch.NewColly(fetch.CollyConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}), httpBreaker)

	var headless fetch.PageFetcher
	if cfg.Headless.Enabled {
		hf, err := fetch.NewHeadless(fetch.HeadlessConfig{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			defer hf.Close()
			headless = hf
		}
	}

	snapshots, err := newSnapshotStore(ctx, cfg.Snapshots)
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}

	explorer := fetch.NewExplorer(fetch.ExplorerConfig{
		MaxPages:      cfg.Crawler.MaxPages,
		ExploreBudget: cfg.ExploreBudget(),
		SnapshotPath:  cfg.Snapshots.Prefix,
	}, fetcher, headless, fetch.NewRenderDetector(0), snapshots, logger.Named("fetch"))

	completer, err := extract.NewHTTPCompleter(extract.CompleterConfig{
		BaseURL:   cfg.Extraction.APIURL,
		APIKey:    cfg.Extraction.APIKey,
		Model:     cfg.Extraction.Model,
		MaxTokens: cfg.Extraction.MaxTokens,
		Timeout:   cfg.Breakers.Extraction.Request(),
	})
	if err != nil {
		return fmt.Errorf("init completer: %w", err)
	}
	extractor := extract.NewClient(
		completer,
		breaker.New("extraction", breakerConfig(cfg.Breakers.Extraction), logger.Named("breaker"), onBreakerChange),
		logger.Named("extract"),
	)

	// Import side: database, migrations, importer.
	if cfg.DB.Migrate {
		if err := postgres.Migrate(ctx, cfg.DB.DSN); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()
	importer := postgres.NewImporter(store, nil, ids, logger.Named("import"))

	// Progress channel: hub plus configured sinks.
	hub, closeTopic, err := newProgressHub(ctx, cfg, registry, logger)
	if err != nil {
		return fmt.Errorf("init progress hub: %w", err)
	}
	defer closeTopic()
	notifier := progress.NewNotifier(hub)

	scraper := pipeline.NewScraper(validator, explorer, extractor, notifier, ids, logger.Named("scrape"))
	importSvc := pipeline.NewImportService(
		validate.NewWithClock(sysClock.Now),
		nil, // no duplicate detector deployed yet; the import warns and proceeds
		importer,
		notifier,
		ids,
		logger.Named("import"),
	)

	httpMetrics, err := metrics.NewHTTP(registry)
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	srv := api.NewServer(scraper, importSvc, registry, api.Config{
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		AuthEnabled:    cfg.Auth.Enabled,
		APIKey:         cfg.Auth.APIKey,
	}, logger.Named("api"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           httpMetrics.Middleware(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	return nil
}

func breakerConfig(b config.BreakerConfig) breaker.Config {
	return breaker.Config{
		FailureThreshold: b.FailureThreshold,
		ResetTimeout:     b.Reset(),
		MonitoringPeriod: b.Monitoring(),
		RequestTimeout:   b.Request(),
	}
}

func newSnapshotStore(ctx context.Context, cfg config.SnapshotsConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return bloblocal.New(bloblocal.Config{BaseDir: cfg.LocalPath})
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return blobgcs.New(client, blobgcs.Config{
			Bucket:             cfg.GCSBucket,
			DefaultContentType: cfg.ContentType,
		})
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

// newProgressHub assembles the hub with the log sink, Prometheus sink, and,
// when enabled, a Pub/Sub sink. The returned func releases the Pub/Sub client.
func newProgressHub(
	ctx context.Context,
	cfg config.Config,
	registry *prometheus.Registry,
	logger *zap.Logger,
) (*progress.Hub, func(), error) {
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, nil, err
	}
	sinkList := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	}
	closeTopic := func() {}
	if cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("create pubsub client: %w", err)
		}
		sink, err := sinks.NewPubSubSink(client.Topic(cfg.PubSub.TopicName), logger.Named("pubsub"))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		sinkList = append(sinkList, sink)
		closeTopic = func() {
			_ = client.Close()
		}
	}
	return progress.NewHub(progress.Config{Logger: logger.Named("progress")}, sinkList...), closeTopic, nil
}
