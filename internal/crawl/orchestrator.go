package crawl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/metrics"
	"github.com/finsight/newscrawler/internal/profile"
)

// idlePollInterval is how often an idle worker rechecks the frontier
// while other workers may still discover links.
const idlePollInterval = 50 * time.Millisecond

// Config controls the orchestrator.
type Config struct {
	// Concurrency is the number of workers per domain.
	Concurrency int
}

// Orchestrator drives the crawl: one frontier and worker pool per
// domain, all domains in parallel, until the frontiers drain or a cap
// is hit.
type Orchestrator struct {
	cfg       Config
	fetcher   Fetcher
	headless  Fetcher
	detector  RenderDetector
	filter    *LinkFilter
	dedup     DedupCache
	extractor Extractor
	store     Store
	quotas    QuotaView
	limiter   Waiter
	sinks     []SavedSink
	clock     Clock
	logger    *zap.Logger
}

// NewOrchestrator builds an Orchestrator. The headless fetcher and the
// render detector may be nil when no profile renders JavaScript.
func NewOrchestrator(
	cfg Config,
	fetcher Fetcher,
	headless Fetcher,
	detector RenderDetector,
	filter *LinkFilter,
	dedup DedupCache,
	extractor Extractor,
	store Store,
	quotas QuotaView,
	limiter Waiter,
	sinks []SavedSink,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		headless:  headless,
		detector:  detector,
		filter:    filter,
		dedup:     dedup,
		extractor: extractor,
		store:     store,
		quotas:    quotas,
		limiter:   limiter,
		sinks:     sinks,
		clock:     clock,
		logger:    logger,
	}
}

// siteCounters accumulates per-domain results while workers run.
type siteCounters struct {
	saved   atomic.Int64
	errors  atomic.Int64
	skipped atomic.Int64
	visited atomic.Int64
}

// Run crawls every site until its frontier drains or a cap fires. The
// global cap cancels all domains; a per-site cap cancels only its own.
func (o *Orchestrator) Run(ctx context.Context, sites []*profile.Site) map[string]*SiteStats {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	stats := make(map[string]*SiteStats, len(sites))
	var wg sync.WaitGroup
	for _, site := range sites {
		st := &SiteStats{Started: o.clock.Now()}
		stats[site.Domain] = st

		wg.Add(1)
		go func(site *profile.Site, st *SiteStats) {
			defer wg.Done()
			counters := &siteCounters{}
			o.crawlSite(runCtx, cancelRun, site, counters)
			st.Saved = int(counters.saved.Load())
			st.Errors = int(counters.errors.Load())
			st.Skipped = int(counters.skipped.Load())
			st.Visited = int(counters.visited.Load())
			st.Finished = o.clock.Now()
		}(site, st)
	}
	wg.Wait()

	o.report(stats)
	return stats
}

func (o *Orchestrator) crawlSite(ctx context.Context, cancelRun context.CancelFunc, site *profile.Site, counters *siteCounters) {
	siteCtx, cancelSite := context.WithCancel(ctx)
	defer cancelSite()

	frontier := NewFrontier()
	frontier.Push(site.StartURL)

	o.logger.Info("crawl started",
		zap.String("site", site.Name),
		zap.String("domain", site.Domain),
		zap.Int("workers", o.cfg.Concurrency),
	)

	var inflight atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(siteCtx, cancelRun, cancelSite, site, frontier, &inflight, counters)
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) worker(
	ctx context.Context,
	cancelRun, cancelSite context.CancelFunc,
	site *profile.Site,
	frontier *Frontier,
	inflight *atomic.Int64,
	counters *siteCounters,
) {
	for {
		if ctx.Err() != nil {
			return
		}
		if o.quotas.GlobalReached() {
			o.logger.Info("global article cap reached, stopping crawl", zap.String("domain", site.Domain))
			cancelRun()
			return
		}
		if o.quotas.SiteReached(site.Domain) {
			o.logger.Info("site article cap reached, stopping domain", zap.String("domain", site.Domain))
			cancelSite()
			return
		}

		// The in-flight count must rise before the pop so an idle
		// sibling never mistakes a just-claimed URL for a drained
		// frontier.
		inflight.Add(1)
		rawURL, ok := frontier.Pop()
		if !ok {
			inflight.Add(-1)
			if inflight.Load() == 0 && frontier.Len() == 0 {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePollInterval):
			}
			continue
		}

		o.visit(ctx, site, frontier, rawURL, counters)
		inflight.Add(-1)
	}
}

func (o *Orchestrator) visit(ctx context.Context, site *profile.Site, frontier *Frontier, rawURL string, counters *siteCounters) {
	isArticle := site.IsArticleURL(rawURL)
	if isArticle && o.dedup.IsCached(site.Domain, rawURL) {
		counters.skipped.Add(1)
		metrics.ObserveSkipped(site.Domain, string(ReasonDuplicate))
		return
	}

	if err := o.limiter.Wait(ctx, site.Domain); err != nil {
		return
	}

	metrics.WorkerStarted()
	defer metrics.WorkerDone()

	fetcher := o.fetcher
	if site.RenderJS && o.headless != nil {
		fetcher = o.headless
	}
	page, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		counters.errors.Add(1)
		metrics.ObserveFetch(site.Domain, false, 0)
		o.logger.Warn("fetch failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return
	}
	counters.visited.Add(1)
	metrics.ObserveFetch(site.Domain, true, page.Duration)

	// A plain fetch can come back as a client-side shell; retry those
	// through the browser when one is available.
	if o.headless != nil && o.detector != nil && o.detector.NeedsRender(page) {
		if rendered, rerr := o.headless.Fetch(ctx, rawURL); rerr == nil {
			page = rendered
		} else if ctx.Err() == nil {
			o.logger.Warn("headless refetch failed",
				zap.String("url", rawURL),
				zap.Error(rerr),
			)
		}
	}

	base := page.FinalURL
	if base == "" {
		base = rawURL
	}
	// Links discovered after a cap fires would never be visited; keep
	// them out of the frontier.
	if !o.quotas.GlobalReached() && !o.quotas.SiteReached(site.Domain) {
		for _, link := range o.filter.ExtractLinks(page.Body, base, site) {
			frontier.Push(link)
		}
	}

	if !isArticle {
		return
	}

	article, err := o.extractor.Extract(page.Body, site, rawURL)
	if err != nil {
		counters.skipped.Add(1)
		metrics.ObserveExtractFailure(site.Domain, extractField(err))
		o.logger.Debug("extraction rejected page",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return
	}

	outcome, err := o.store.Save(ctx, article, site)
	if err != nil {
		counters.errors.Add(1)
		o.logger.Error("save failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return
	}
	if !outcome.Stored {
		counters.skipped.Add(1)
		metrics.ObserveSkipped(site.Domain, string(outcome.Reason))
		return
	}

	counters.saved.Add(1)
	metrics.ObserveSaved(site.Domain)
	o.notifySinks(ctx, article, outcome.Path)
}

func (o *Orchestrator) notifySinks(ctx context.Context, article Article, path string) {
	for _, sink := range o.sinks {
		if err := sink.ArticleSaved(ctx, article, path); err != nil {
			o.logger.Warn("saved-article sink failed",
				zap.String("url", article.URL),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) report(stats map[string]*SiteStats) {
	for domain, st := range stats {
		o.logger.Info("crawl finished",
			zap.String("domain", domain),
			zap.Int("visited", st.Visited),
			zap.Int("saved", st.Saved),
			zap.Int("skipped", st.Skipped),
			zap.Int("errors", st.Errors),
			zap.Duration("elapsed", st.Finished.Sub(st.Started)),
		)
	}
}

func extractField(err error) string {
	switch {
	case errors.Is(err, ErrMissingTitle):
		return "title"
	case errors.Is(err, ErrMissingDate):
		return "date"
	case errors.Is(err, ErrMissingBody):
		return "body"
	default:
		return "parse"
	}
}
