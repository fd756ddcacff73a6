// Command curator runs the content curation pipeline: it drains the pending
// URL backlog, curates each page into the catalog, and exits. Operator
// actions (schema setup, URL registration, feed ingestion, backlog reset) are
// exposed as flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	curator "github.com/diegosardonpro/runa-curator"
	"github.com/diegosardonpro/runa-curator/config"
	"github.com/diegosardonpro/runa-curator/db"
	"github.com/diegosardonpro/runa-curator/extract"
	"github.com/diegosardonpro/runa-curator/feed"
	"github.com/diegosardonpro/runa-curator/fetch"
	"github.com/diegosardonpro/runa-curator/gemini"
	"github.com/diegosardonpro/runa-curator/metrics"
	"github.com/diegosardonpro/runa-curator/models"
	"github.com/diegosardonpro/runa-curator/render"
	"github.com/diegosardonpro/runa-curator/storage"
	"github.com/diegosardonpro/runa-curator/vision"
)

func main() {
	var (
		setupSchema = flag.Bool("setup-schema", false, "Run database migrations and exit")
		addURL      = flag.String("url", "", "Register a URL in the backlog and exit")
		ingestFeeds = flag.Bool("feeds", false, "Ingest configured RSS feeds into the backlog before running")
		resetAll    = flag.Bool("reset", false, "Delete all curated output and return every URL to pending, then exit")
		batchSize   = flag.Int("batch", 0, "Override BATCH_SIZE for this run")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.New(db.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *setupSchema {
		if err := store.Setup(); err != nil {
			logger.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		logger.Info("schema is up to date")
		return
	}

	if *resetAll {
		if err := store.ResetBacklog(); err != nil {
			logger.Error("backlog reset failed", "error", err)
			os.Exit(1)
		}
		logger.Info("backlog reset, all urls pending again")
		return
	}

	if *addURL != "" {
		isNew, err := store.AddURL(strings.TrimSpace(*addURL))
		if err != nil {
			logger.Error("failed to register url", "url", *addURL, "error", err)
			os.Exit(1)
		}
		logger.Info("url registered", "url", *addURL, "new", isNew)
		return
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, m, logger)
	}

	if *ingestFeeds {
		if len(cfg.FeedURLs) == 0 {
			logger.Warn("feed ingestion requested but FEED_URLS is empty")
		} else {
			watcher := feed.NewWatcher(store, logger.With("component", "feed"))
			added, err := watcher.IngestAll(ctx, cfg.FeedURLs)
			if err != nil {
				logger.Warn("some feeds failed to ingest", "error", err)
			}
			logger.Info("feed ingestion finished", "new_urls", added)
		}
	}

	llm := gemini.NewClient(gemini.Config{
		APIKey:     cfg.GeminiAPIKey,
		Models:     cfg.GeminiModels,
		OnFallback: m.ModelFallback,
	}, logger.With("component", "gemini"))

	fetcher, err := fetch.NewFetcher(fetch.Config{OutputDir: cfg.ImageDir}, logger.With("component", "fetch"))
	if err != nil {
		logger.Error("failed to prepare image fetcher", "error", err)
		os.Exit(1)
	}

	var publisher curator.Publisher
	if cfg.S3Configured() {
		pub, err := storage.NewPublisher(ctx, storage.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
		publisher = pub
	} else {
		logger.Warn("object storage not configured, images stay on local disk")
	}

	renderCfg := render.DefaultConfig()
	renderCfg.Timeout = cfg.RenderTimeout
	renderCfg.SettleDelay = cfg.RenderSettle

	curatorCfg := curator.Config{
		BatchSize:            cfg.BatchSize,
		MaxImagesPerAsset:    cfg.MaxImagesPerAsset,
		FilterBeforeDownload: cfg.FilterBeforeDownload,
	}
	if *batchSize > 0 {
		curatorCfg.BatchSize = *batchSize
	}

	pipeline, err := curator.New(curatorCfg, curator.Deps{
		Store:     store,
		Renderer:  render.NewRenderer(renderCfg, logger.With("component", "render")),
		Metadata:  extract.NewMetadataExtractor(llm, logger.With("component", "extract")),
		Vision:    vision.NewFilter(vision.Config{}, llm, logger.With("component", "vision")),
		Fetcher:   fetcher,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	run, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("run aborted", "error", err)
		os.Exit(1)
	}
	if run.Outcome == models.RunOutcomeFailed {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
