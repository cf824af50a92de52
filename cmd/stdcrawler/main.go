// Command stdcrawler runs the standards-search crawl service: an HTTP API
// that accepts keyword crawl tasks and a worker pool that drives a headless
// browser against the national standards platform.
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

	gpubsub "cloud.google.com/go/pubsub"
	gcsapi "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/api"
	"github.com/gbstd/std-crawler/internal/browser"
	"github.com/gbstd/std-crawler/internal/clock/system"
	"github.com/gbstd/std-crawler/internal/config"
	"github.com/gbstd/std-crawler/internal/crawler"
	"github.com/gbstd/std-crawler/internal/dispatcher"
	"github.com/gbstd/std-crawler/internal/id/uuid"
	"github.com/gbstd/std-crawler/internal/logging"
	"github.com/gbstd/std-crawler/internal/metrics"
	memorypub "github.com/gbstd/std-crawler/internal/publisher/memory"
	pubsubpub "github.com/gbstd/std-crawler/internal/publisher/pubsub"
	memoryqueue "github.com/gbstd/std-crawler/internal/queue/memory"
	"github.com/gbstd/std-crawler/internal/runner"
	"github.com/gbstd/std-crawler/internal/storage/gcs"
	"github.com/gbstd/std-crawler/internal/storage/local"
	memorystore "github.com/gbstd/std-crawler/internal/storage/memory"
	"github.com/gbstd/std-crawler/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "stdcrawler: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	taskStore := memorystore.NewTaskStore()

	blobStore, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	publisher, topic, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var history *postgres.TaskStore
	if cfg.DB.DSN != "" {
		history, err = postgres.NewTaskStore(ctx, postgres.TaskStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MaxConnLifetime: 30 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("connect task history store: %w", err)
		}
		defer history.Close()
		logger.Info("task history store enabled", zap.String("table", cfg.DB.Table))
	}

	queue := memoryqueue.NewQueue(cfg.Crawler.QueueDepth)
	defer queue.Close()

	pacer := crawler.NewDelayPacer(crawler.PacerConfig{
		Delay:        cfg.Delay(),
		Jitter:       cfg.Jitter(),
		EnrichDelay:  time.Duration(cfg.Crawler.EnrichDelayMs) * time.Millisecond,
		EnrichJitter: time.Duration(cfg.Crawler.EnrichJitterMs) * time.Millisecond,
		MaxRPS:       cfg.Crawler.MaxRPS,
	})

	sessions := browser.NewFactory(browser.Config{
		Headless:  cfg.Headless.Headless,
		UserAgent: cfg.Headless.UserAgent,
	}, logger.Named("browser"))
	defer sessions.Close()

	clk := system.New()
	workerCfg := runner.Config{
		Topic:          topic,
		SnapshotPrefix: cfg.Storage.Prefix,
		Paginator: crawler.PaginatorConfig{
			NavTimeout:  time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			SettleDelay: time.Duration(cfg.Headless.SettleDelaySec) * time.Second,
		},
		Enricher: crawler.EnricherConfig{
			NavTimeout:  time.Duration(cfg.Headless.DetailTimeoutSec) * time.Second,
			SettleDelay: time.Duration(cfg.Headless.SettleDelaySec) * time.Second,
			RetryBudget: cfg.Crawler.RetryBudget,
		},
	}

	workers := make([]*runner.Worker, 0, cfg.Crawler.Workers)
	for i := 0; i < cfg.Crawler.Workers; i++ {
		var hist runner.History
		if history != nil {
			hist = history
		}
		workers = append(workers, runner.New(
			queue, taskStore, blobStore, publisher, sessions, pacer, clk, hist,
			workerCfg, logger.Named(fmt.Sprintf("worker-%d", i)),
		))
	}

	disp := dispatcher.New(queue, workers, logger.Named("dispatcher"))
	go disp.Run(ctx)

	var submissions api.SubmissionLog
	if history != nil {
		submissions = history
	}
	server := api.NewServer(taskStore, disp, uuid.New(), clk, submissions, api.Config{
		MaxPagesDefault: cfg.Crawler.MaxPagesDefault,
	}, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	logger.Info("stdcrawler stopped")
	return nil
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memorystore.NewBlobStore(), nil
	case "gcs":
		client, err := gcsapi.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("create gcs blob store: %w", err)
		}
		logger.Info("snapshot storage: gcs", zap.String("bucket", cfg.Storage.GCSBucket))
		return store, nil
	default:
		store, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("create local blob store: %w", err)
		}
		logger.Info("snapshot storage: local", zap.String("base_dir", cfg.Storage.BaseDir))
		return store, nil
	}
}

// buildPublisher returns the completion-event publisher and the topic name
// workers should publish to. Without Pub/Sub config falls back to the
// in-memory publisher, which is enough for single-process deployments.
func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Publisher, string, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return memorypub.New(), "task-completions", nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	logger.Info("completion events: pubsub",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return pubsubpub.New(topic), cfg.PubSub.TopicName, nil
}
