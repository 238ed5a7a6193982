// Package crawl defines the core types and interfaces for the news
// crawling engine, plus the per-domain orchestrator that drives them.
package crawl

import (
	"errors"
	"net/url"
	"time"
)

// Extraction rejections. A page that fails one of these is skipped,
// not treated as a crawl error.
var (
	ErrMissingTitle = errors.New("missing title")
	ErrMissingDate  = errors.New("missing date")
	ErrMissingBody  = errors.New("missing body")
)

// Page is the outcome of fetching a single URL. It is owned by the
// fetch call and consumed immediately by the caller.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Article is the normalized output of the extraction pipeline.
// Immutable after creation; it is either persisted or discarded.
type Article struct {
	URL     string
	Domain  string
	Title   string
	Date    time.Time
	Authors []string
	Body    string
}

// Host returns the hostname portion of the article URL, used for the
// 网站 line of the persisted artifact.
func (a Article) Host() string {
	u, err := url.Parse(a.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// RejectReason identifies why the store refused an article.
type RejectReason string

// Store rejection reasons. All are non-fatal: the URL is counted as
// processed-but-skipped.
const (
	ReasonNone           RejectReason = ""
	ReasonDuplicate      RejectReason = "duplicate"
	ReasonOutOfRetention RejectReason = "out_of_retention"
	ReasonTooShort       RejectReason = "too_short"
	ReasonQuotaReached   RejectReason = "quota_reached"
)

// SaveOutcome reports what the store did with an article.
type SaveOutcome struct {
	Stored bool
	Path   string
	Reason RejectReason
}

// SiteStats accumulates per-domain counters for the end-of-crawl report.
type SiteStats struct {
	Saved    int
	Errors   int
	Skipped  int
	Visited  int
	Started  time.Time
	Finished time.Time
}
