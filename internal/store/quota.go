package store

import (
	"context"
	"sync"

	"github.com/finsight/newscrawler/internal/crawl"
)

// Quotas tracks how many articles were persisted globally, per site,
// and per site per day. Only the store increments it; the orchestrator
// reads it through crawl.QuotaView to stop crawling early.
type Quotas struct {
	maxGlobal  int
	maxPerSite int

	mu      sync.Mutex
	global  int
	perSite map[string]int
	perDay  map[string]int // keyed by "<date>/<domain>"
	seeded  map[string]bool
}

// NewQuotas builds the counter set.
func NewQuotas(maxGlobal, maxPerSite int) *Quotas {
	return &Quotas{
		maxGlobal:  maxGlobal,
		maxPerSite: maxPerSite,
		perSite:    make(map[string]int),
		perDay:     make(map[string]int),
		seeded:     make(map[string]bool),
	}
}

// GlobalReached reports whether the run-wide cap is hit.
func (q *Quotas) GlobalReached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.global >= q.maxGlobal
}

// SiteReached reports whether the per-site cap is hit.
func (q *Quotas) SiteReached(domain string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.perSite[domain] >= q.maxPerSite
}

// seedDay loads the on-disk artifact count for the date directory into
// the day counter, once, so restarts keep counting where the last run
// stopped.
func (q *Quotas) seedDay(ctx context.Context, blob crawl.BlobStore, dayKey string) error {
	q.mu.Lock()
	seeded := q.seeded[dayKey]
	q.mu.Unlock()
	if seeded {
		return nil
	}

	existing, err := blob.CountObjects(ctx, dayKey, ".txt")
	if err != nil {
		return err
	}
	q.mu.Lock()
	if !q.seeded[dayKey] {
		q.perDay[dayKey] = existing
		q.seeded[dayKey] = true
	}
	q.mu.Unlock()
	return nil
}

// reserve claims one slot against the global, per-site, and per-day
// caps in a single critical section, so concurrent saves cannot all
// pass the check before any of them counts. A claim taken for a write
// that later fails must be returned with release.
func (q *Quotas) reserve(domain, dayKey string, maxPerDay int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.global >= q.maxGlobal || q.perSite[domain] >= q.maxPerSite || q.perDay[dayKey] >= maxPerDay {
		return false
	}
	q.global++
	q.perSite[domain]++
	q.perDay[dayKey]++
	return true
}

// release returns a reserved slot after a failed write.
func (q *Quotas) release(domain, dayKey string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.global--
	q.perSite[domain]--
	q.perDay[dayKey]--
}

// Saved returns the per-site and global totals for the crawl report.
func (q *Quotas) Saved(domain string) (site int, global int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.perSite[domain], q.global
}
