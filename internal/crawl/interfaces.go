package crawl

import (
	"context"
	"time"

	"github.com/finsight/newscrawler/internal/profile"
)

// Fetcher retrieves a single URL and returns the page plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// RobotsPolicy answers whether a URL may be crawled, keyed by the
// URL's own host. Implementations must be pure lookups: no I/O on the
// Allowed path.
type RobotsPolicy interface {
	Allowed(rawURL string) bool
}

// DedupCache is the durable record of URLs already persisted.
type DedupCache interface {
	IsCached(domain, rawURL string) bool
	MarkCached(domain, rawURL string) error
}

// Extractor turns raw HTML into a normalized Article or a typed
// rejection error.
type Extractor interface {
	Extract(body []byte, site *profile.Site, rawURL string) (Article, error)
}

// Store validates an article against retention/quota/dedup rules and
// persists it as a single artifact.
type Store interface {
	Save(ctx context.Context, article Article, site *profile.Site) (SaveOutcome, error)
}

// QuotaView exposes read-only cap checks to the orchestrator. Only the
// store mutates the underlying counters.
type QuotaView interface {
	GlobalReached() bool
	SiteReached(domain string) bool
}

// RenderDetector spots pages whose content is assembled client-side
// and therefore needs a headless refetch.
type RenderDetector interface {
	NeedsRender(page Page) bool
}

// Waiter paces requests per domain.
type Waiter interface {
	Wait(ctx context.Context, domain string) error
}

// BlobStore writes raw artifacts and returns a URI. GetObject returns
// an error wrapping fs.ErrNotExist when the object is absent.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
	CountObjects(ctx context.Context, prefix string, suffix string) (int, error)
}

// Publisher pushes saved-article events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SavedSink receives every successfully persisted article, for
// downstream indexing or event publication. Sink failures are logged,
// never fatal to the crawl.
type SavedSink interface {
	ArticleSaved(ctx context.Context, article Article, path string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
