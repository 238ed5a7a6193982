// Package dedup tracks URLs whose articles have already been persisted
// so later runs never write them twice.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache is a durable set of saved URLs, grouped by domain. Lookups are
// in-memory; the set is written back to disk on a timer and on Close.
type Cache struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	seen  map[string]map[string]struct{}
	dirty bool

	stop chan struct{}
	done chan struct{}
}

// New loads the cache file (if any) and starts the periodic flusher.
func New(path string, flushInterval time.Duration, logger *zap.Logger) (*Cache, error) {
	c := &Cache{
		path:   path,
		logger: logger,
		seen:   make(map[string]map[string]struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	go c.flushLoop(flushInterval)
	return c, nil
}

// IsCached reports whether the URL was persisted by this or an earlier
// run.
func (c *Cache) IsCached(domain, rawURL string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	urls, ok := c.seen[domain]
	if !ok {
		return false
	}
	_, ok = urls[rawURL]
	return ok
}

// MarkCached records the URL. Call it only after the article artifact
// has been written, so a crash never leaves a marked-but-missing entry.
func (c *Cache) MarkCached(domain, rawURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	urls, ok := c.seen[domain]
	if !ok {
		urls = make(map[string]struct{})
		c.seen[domain] = urls
	}
	if _, dup := urls[rawURL]; !dup {
		urls[rawURL] = struct{}{}
		c.dirty = true
	}
	return nil
}

// Close stops the flusher and writes any pending entries.
func (c *Cache) Close(ctx context.Context) error {
	close(c.stop)
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Flush()
}

// Flush writes the cache to disk if it changed since the last write.
func (c *Cache) Flush() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snapshot := make(map[string][]string, len(c.seen))
	for domain, urls := range c.seen {
		list := make([]string, 0, len(urls))
		for u := range urls {
			list = append(list, u)
		}
		sort.Strings(list)
		snapshot[domain] = list
	}
	c.dirty = false
	c.mu.Unlock()

	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dedup cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create dedup cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write dedup cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace dedup cache: %w", err)
	}
	return nil
}

func (c *Cache) load() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dedup cache: %w", err)
	}
	stored := make(map[string][]string)
	if err := json.Unmarshal(raw, &stored); err != nil {
		c.logger.Warn("dedup cache unreadable, starting empty",
			zap.String("path", c.path), zap.Error(err))
		return nil
	}
	for domain, urls := range stored {
		set := make(map[string]struct{}, len(urls))
		for _, u := range urls {
			set[u] = struct{}{}
		}
		c.seen[domain] = set
	}
	return nil
}

func (c *Cache) flushLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Flush(); err != nil {
				c.logger.Warn("periodic dedup flush failed", zap.Error(err))
			}
		}
	}
}
