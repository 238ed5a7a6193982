// Package robots implements the politeness gate: robots.txt fetching,
// parsing, durable caching, and allow/deny lookups.
package robots

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/profile"
)

// entry is one domain's cached robots.txt state. Body is kept so a
// restart can rebuild the parsed rules without refetching.
type entry struct {
	FetchedAt time.Time `json:"fetched_at"`
	Failed    bool      `json:"failed"`
	Body      string    `json:"body"`

	data *robotstxt.RobotsData
}

// Gate answers robots.txt queries for the crawl. All fetching happens
// up front in Prepare; Allowed is a pure in-memory lookup.
type Gate struct {
	userAgent string
	ttl       time.Duration
	cachePath string
	client    *http.Client
	clock     crawl.Clock
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// Config controls the gate.
type Config struct {
	UserAgent string
	TTL       time.Duration
	CachePath string
}

// NewGate builds a Gate and loads any previously cached directives
// from disk. A missing or corrupt cache file starts the gate empty.
func NewGate(cfg Config, clock crawl.Clock, logger *zap.Logger) *Gate {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	g := &Gate{
		userAgent: cfg.UserAgent,
		ttl:       cfg.TTL,
		cachePath: cfg.CachePath,
		client:    &http.Client{Timeout: 10 * time.Second},
		clock:     clock,
		logger:    logger,
		entries:   make(map[string]*entry),
	}
	g.loadCache()
	return g
}

// Prepare fetches robots.txt for every host a site may crawl: the
// start URL's host, the primary domain, and every extra host in the
// profile's allow-list. Hosts whose cached copy is still fresh are
// skipped, and the cache is persisted at the end. It must complete
// before any crawling starts.
func (g *Gate) Prepare(ctx context.Context, sites []*profile.Site) error {
	hosts := make(map[string]string)
	for _, site := range sites {
		scheme := "https"
		if u, err := url.Parse(site.StartURL); err == nil && u.Host != "" {
			scheme = u.Scheme
			hosts[strings.ToLower(u.Host)] = scheme
		}
		for _, host := range append([]string{site.Domain}, site.Domains...) {
			host = strings.ToLower(host)
			if host == "" {
				continue
			}
			if _, ok := hosts[host]; !ok {
				hosts[host] = scheme
			}
		}
	}

	var wg sync.WaitGroup
	for host, scheme := range hosts {
		if g.fresh(host) {
			continue
		}
		wg.Add(1)
		go func(host, scheme string) {
			defer wg.Done()
			g.fetchOne(ctx, host, scheme)
		}(host, scheme)
	}
	wg.Wait()

	return g.saveCache()
}

// Allowed reports whether the URL may be crawled. Directives are
// looked up by the URL's own host, so subdomains answer from their own
// robots.txt. Hosts with no cached directives, or whose robots.txt
// could not be fetched, are allowed.
func (g *Gate) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	g.mu.RLock()
	e, ok := g.entries[strings.ToLower(u.Host)]
	g.mu.RUnlock()
	if !ok || e.Failed || e.data == nil {
		return true
	}
	group := e.data.FindGroup("*")
	if group == nil {
		return true
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return group.Test(p)
}

func (g *Gate) fresh(host string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entries[host]
	return ok && g.clock.Now().Sub(e.FetchedAt) < g.ttl
}

func (g *Gate) fetchOne(ctx context.Context, host, scheme string) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	e := &entry{FetchedAt: g.clock.Now()}

	body, status, err := g.get(ctx, robotsURL)
	if err != nil {
		g.logger.Warn("robots fetch failed, domain will be allowed",
			zap.String("host", host), zap.Error(err))
		e.Failed = true
	} else {
		data, perr := robotstxt.FromStatusAndBytes(status, body)
		if perr != nil {
			g.logger.Warn("robots parse failed, domain will be allowed",
				zap.String("host", host), zap.Error(perr))
			e.Failed = true
		} else {
			e.Body = string(body)
			e.data = data
		}
	}

	g.mu.Lock()
	g.entries[host] = e
	g.mu.Unlock()
}

func (g *Gate) get(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read robots body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (g *Gate) loadCache() {
	if g.cachePath == "" {
		return
	}
	raw, err := os.ReadFile(g.cachePath)
	if err != nil {
		return
	}
	stored := make(map[string]*entry)
	if err := json.Unmarshal(raw, &stored); err != nil {
		g.logger.Warn("robots cache unreadable, starting empty",
			zap.String("path", g.cachePath), zap.Error(err))
		return
	}
	for host, e := range stored {
		if !e.Failed && e.Body != "" {
			data, perr := robotstxt.FromString(e.Body)
			if perr != nil {
				continue
			}
			e.data = data
		}
		g.entries[host] = e
	}
}

func (g *Gate) saveCache() error {
	if g.cachePath == "" {
		return nil
	}
	g.mu.RLock()
	raw, err := json.MarshalIndent(g.entries, "", "  ")
	g.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal robots cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(g.cachePath), 0o755); err != nil {
		return fmt.Errorf("create robots cache dir: %w", err)
	}
	if err := os.WriteFile(g.cachePath, raw, 0o644); err != nil {
		return fmt.Errorf("write robots cache: %w", err)
	}
	return nil
}
