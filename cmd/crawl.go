package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/api"
	"github.com/finsight/newscrawler/internal/catalog"
	"github.com/finsight/newscrawler/internal/clock/system"
	"github.com/finsight/newscrawler/internal/config"
	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/dedup"
	"github.com/finsight/newscrawler/internal/extract"
	"github.com/finsight/newscrawler/internal/fetch"
	"github.com/finsight/newscrawler/internal/id/uuid"
	"github.com/finsight/newscrawler/internal/logging"
	"github.com/finsight/newscrawler/internal/metrics"
	"github.com/finsight/newscrawler/internal/profile"
	"github.com/finsight/newscrawler/internal/publisher"
	pubsubpublisher "github.com/finsight/newscrawler/internal/publisher/pubsub"
	"github.com/finsight/newscrawler/internal/ratelimit"
	"github.com/finsight/newscrawler/internal/robots"
	"github.com/finsight/newscrawler/internal/storage/gcs"
	"github.com/finsight/newscrawler/internal/storage/local"
	"github.com/finsight/newscrawler/internal/store"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl pass over all enabled sites",
		Long: `Fetches robots.txt for every enabled site, then crawls each site
concurrently until its frontier drains or an article cap is reached.
SIGINT and SIGTERM stop the crawl gracefully; the dedup cache is
flushed before exit so the next run skips everything already saved.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sites, err := profile.EnabledSites(cfg.Sites)
	if err != nil {
		return err
	}

	runID, err := uuid.New().NewID()
	if err != nil {
		return err
	}
	logger.Info("crawl run starting",
		zap.String("run_id", runID),
		zap.Int("sites", len(sites)),
	)

	clock := system.New()

	gate := robots.NewGate(robots.Config{
		UserAgent: cfg.Politeness.UserAgent,
		TTL:       cfg.Politeness.RobotsTTL,
		CachePath: cfg.Politeness.CachePath,
	}, clock, logger.Named("robots"))
	if err := gate.Prepare(ctx, sites); err != nil {
		return fmt.Errorf("prepare robots gate: %w", err)
	}

	cache, err := dedup.New(cfg.Cache.Path, cfg.Cache.FlushInterval, logger.Named("dedup"))
	if err != nil {
		return fmt.Errorf("open dedup cache: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cache.Close(closeCtx); err != nil {
			logger.Warn("dedup cache close failed", zap.Error(err))
		}
	}()

	blob, cleanupBlob, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupBlob()

	if cfg.Storage.CleanupEnabled {
		if lb, ok := blob.(*local.BlobStore); ok {
			removed, err := lb.CleanupExpired(clock.Now(), cfg.Crawler.RetentionDays)
			if err != nil {
				logger.Warn("retention cleanup failed", zap.Error(err))
			} else if removed > 0 {
				logger.Info("expired artifact directories removed", zap.Int("count", removed))
			}
		}
	}

	quotas := store.NewQuotas(cfg.Crawler.MaxArticles, cfg.Crawler.MaxPerSite)
	artStore := store.New(store.Config{
		RetentionDays: cfg.Crawler.RetentionDays,
		MinBodyChars:  cfg.Crawler.MinBodyChars,
	}, blob, cache, quotas, clock, logger.Named("store"))

	fetcher := fetch.New(fetch.Config{
		UserAgent:    cfg.Politeness.UserAgent,
		Timeout:      cfg.HTTP.Timeout,
		MaxRetries:   cfg.HTTP.MaxRetries,
		RetryBase:    cfg.HTTP.RetryBase,
		DelayMin:     cfg.HTTP.DelayMin,
		DelayMax:     cfg.HTTP.DelayMax,
		ExtraHeaders: cfg.HTTP.Headers,
	}, logger.Named("fetch"))

	headless, closeHeadless := buildHeadless(cfg, sites, logger)
	defer closeHeadless()

	sinks, cleanupSinks, err := buildSinks(ctx, cfg, runID, clock, logger)
	if err != nil {
		return err
	}
	defer cleanupSinks()

	opsSrv := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           api.NewServer(sites, quotas, runID, clock, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server started", zap.String("addr", cfg.Ops.Addr))
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
		}
	}()

	orch := crawl.NewOrchestrator(
		crawl.Config{Concurrency: cfg.Crawler.Concurrency},
		fetcher,
		headless,
		fetch.NewDetector(0),
		crawl.NewLinkFilter(gate, cfg.Crawler.FreshnessDays, clock),
		cache,
		extract.New(clock, logger.Named("extract")),
		artStore,
		quotas,
		ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Politeness.RatePerSec}),
		sinks,
		clock,
		logger.Named("crawl"),
	)
	stats := orch.Run(ctx, sites)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown error", zap.Error(err))
	}

	saved := 0
	for _, st := range stats {
		saved += st.Saved
	}
	logger.Info("crawl run finished",
		zap.String("run_id", runID),
		zap.Int("saved_total", saved),
	)
	return nil
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (crawl.BlobStore, func(), error) {
	if cfg.Storage.GCSBucket != "" {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		blob, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return blob, func() { _ = client.Close() }, nil
	}
	blob, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
	if err != nil {
		return nil, nil, err
	}
	return blob, func() {}, nil
}

// buildHeadless starts the browser fetcher only when a profile needs
// it. Startup failure degrades those profiles to the plain fetcher.
func buildHeadless(cfg *config.Config, sites []*profile.Site, logger *zap.Logger) (crawl.Fetcher, func()) {
	needed := false
	for _, site := range sites {
		if site.RenderJS {
			needed = true
			break
		}
	}
	if !needed {
		return nil, func() {}
	}
	headless, err := fetch.NewHeadless(fetch.HeadlessConfig{
		MaxParallel:       cfg.Crawler.Concurrency,
		UserAgent:         cfg.Politeness.UserAgent,
		NavigationTimeout: cfg.HTTP.Timeout,
	})
	if err != nil {
		logger.Warn("headless fetcher init failed", zap.Error(err))
		return nil, func() {}
	}
	return headless, headless.Close
}

func buildSinks(ctx context.Context, cfg *config.Config, runID string, clock crawl.Clock, logger *zap.Logger) ([]crawl.SavedSink, func(), error) {
	var sinks []crawl.SavedSink
	var cleanups []func()
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	if cfg.Catalog.Enabled {
		cat, err := catalog.New(ctx, catalog.Config{DSN: cfg.Catalog.DSN, RunID: runID}, clock)
		if err != nil {
			return nil, nil, fmt.Errorf("open article catalog: %w", err)
		}
		cleanups = append(cleanups, cat.Close)
		sinks = append(sinks, cat)
	}

	if cfg.PubSub.Enabled {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect pubsub: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("pubsub close failed", zap.Error(err))
			}
		})
		sinks = append(sinks, publisher.NewEventSink(pub, cfg.PubSub.Topic, clock, logger.Named("publisher")))
	}

	return sinks, cleanup, nil
}
