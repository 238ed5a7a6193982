// Package fetch implements the retrying HTTP client used to download
// pages from news sites.
package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/metrics"
)

// Config controls client behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	DelayMin     time.Duration
	DelayMax     time.Duration
	DNSCacheSize int
	ExtraHeaders map[string]string
}

// Client fetches URLs with retry, backoff, and per-attempt sessions.
// Each attempt runs on a cloned collector with a fresh transport so a
// poisoned connection never survives into the next attempt.
type Client struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector

	lookupHost func(ctx context.Context, host string) ([]string, error)

	mu       sync.Mutex
	resolved map[string]struct{}
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = 1 * time.Second
	}
	if cfg.DNSCacheSize <= 0 {
		cfg.DNSCacheSize = 512
	}

	base := colly.NewCollector(
		colly.Async(false),
		colly.DetectCharset(),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}

	return &Client{
		cfg:           cfg,
		logger:        logger,
		baseCollector: base,
		lookupHost: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
		resolved: make(map[string]struct{}),
	}
}

// Fetch downloads one URL. Malformed URLs and unresolvable hosts fail
// immediately; timeouts, protocol errors, and bad HTTP statuses are
// retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context, rawURL string) (crawl.Page, error) {
	host, err := validateURL(rawURL)
	if err != nil {
		return crawl.Page{}, err
	}
	if err := c.resolve(ctx, host); err != nil {
		return crawl.Page{}, err
	}
	if err := c.politenessDelay(ctx); err != nil {
		return crawl.Page{}, err
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt - 1)
			metrics.ObserveRetry(host)
			c.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return crawl.Page{}, err
			}
		}

		page, attemptErr := c.attempt(ctx, rawURL)
		if attemptErr == nil {
			return page, nil
		}
		if errors.Is(attemptErr, context.Canceled) || errors.Is(attemptErr, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return crawl.Page{}, attemptErr
			}
		}
		lastErr = attemptErr
	}
	return crawl.Page{}, lastErr
}

// attempt performs one GET on a freshly cloned collector.
func (c *Client) attempt(ctx context.Context, rawURL string) (crawl.Page, error) {
	collector := c.baseCollector.Clone()
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(newHTTPTransport())

	var (
		page     crawl.Page
		status   int
		fetchErr error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range c.cfg.ExtraHeaders {
			r.Headers.Set(key, value)
		}
		if r.Headers.Get("Referer") == "" {
			r.Headers.Set("Referer", r.URL.Scheme+"://"+r.URL.Host+"/")
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		page = crawl.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return crawl.Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		if fetchErr == nil {
			fetchErr = visitErr
		}
	}
	if fetchErr != nil {
		return crawl.Page{}, classify(rawURL, status, fetchErr)
	}
	page.Duration = time.Since(start)
	return page, nil
}

// resolve checks that the host has at least one address before any
// request is attempted. Successful lookups are remembered so repeated
// URLs on the same domain skip the check.
func (c *Client) resolve(ctx context.Context, host string) error {
	c.mu.Lock()
	_, ok := c.resolved[host]
	c.mu.Unlock()
	if ok {
		return nil
	}

	addrs, err := c.lookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: %s", ErrResolution, host)
	}

	c.mu.Lock()
	if len(c.resolved) >= c.cfg.DNSCacheSize {
		c.resolved = make(map[string]struct{})
	}
	c.resolved[host] = struct{}{}
	c.mu.Unlock()
	return nil
}

// politenessDelay sleeps a random duration within [DelayMin, DelayMax]
// before the first attempt, spreading requests out over time.
func (c *Client) politenessDelay(ctx context.Context) error {
	if c.cfg.DelayMax <= c.cfg.DelayMin {
		if c.cfg.DelayMin > 0 {
			return sleepCtx(ctx, c.cfg.DelayMin)
		}
		return nil
	}
	span := c.cfg.DelayMax - c.cfg.DelayMin
	return sleepCtx(ctx, c.cfg.DelayMin+randomDuration(span))
}

// backoff returns base * 2^attempt plus a jitter drawn uniformly from
// [100ms, 1s].
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.cfg.RetryBase) * math.Pow(2, float64(attempt))
	jitter := 100*time.Millisecond + randomDuration(900*time.Millisecond)
	return time.Duration(delay) + jitter
}

func classify(rawURL string, status int, err error) *Error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	case status != 0 && (status < 200 || status >= 300):
		return &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: status, Err: err}
	default:
		return &Error{Kind: KindProtocol, URL: rawURL, Err: err}
	}
}

func validateURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedURL, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %s", ErrMalformedURL, rawURL)
	}
	return u.Hostname(), nil
}

func randomDuration(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
