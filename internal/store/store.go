// Package store persists extracted articles as text artifacts and
// enforces dedup, retention, and quota rules.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/hash"
	"github.com/finsight/newscrawler/internal/profile"
)

const artifactContentType = "text/plain; charset=utf-8"

// Config holds the store's limits.
type Config struct {
	RetentionDays int
	MinBodyChars  int
}

// Store writes one artifact per article. Rejections are reported in
// the outcome, never as errors; errors mean the write itself failed.
type Store struct {
	cfg    Config
	blob   crawl.BlobStore
	cache  crawl.DedupCache
	quotas *Quotas
	clock  crawl.Clock
	logger *zap.Logger
}

// New builds a Store.
func New(cfg Config, blob crawl.BlobStore, cache crawl.DedupCache, quotas *Quotas, clock crawl.Clock, logger *zap.Logger) *Store {
	return &Store{
		cfg:    cfg,
		blob:   blob,
		cache:  cache,
		quotas: quotas,
		clock:  clock,
		logger: logger,
	}
}

// Quotas exposes the counters for orchestrator cap checks.
func (s *Store) Quotas() *Quotas {
	return s.quotas
}

// Save validates the article and persists it. Checks run in a fixed
// order: duplicate, retention, length, quota. A quota slot is reserved
// atomically before the write and released if the write fails, so
// concurrent saves cannot overshoot any cap. The dedup cache is
// updated only after the artifact is durably written.
func (s *Store) Save(ctx context.Context, article crawl.Article, site *profile.Site) (crawl.SaveOutcome, error) {
	dayDir := article.Date.Format("2006-01-02")
	dayKey := dayDir + "/" + site.Domain
	path := dayKey + "/" + fileName(article.Title) + ".txt"

	if s.cache.IsCached(site.Domain, article.URL) {
		return crawl.SaveOutcome{Reason: crawl.ReasonDuplicate}, nil
	}

	path, existing, err := s.resolvePath(ctx, path, article.URL)
	if err != nil {
		return crawl.SaveOutcome{}, err
	}
	if existing {
		// Artifact already on disk from an earlier run; heal the cache.
		if err := s.cache.MarkCached(site.Domain, article.URL); err != nil {
			s.logger.Warn("mark cached failed", zap.String("url", article.URL), zap.Error(err))
		}
		return crawl.SaveOutcome{Reason: crawl.ReasonDuplicate, Path: path}, nil
	}

	if s.outOfRetention(article.Date) {
		return crawl.SaveOutcome{Reason: crawl.ReasonOutOfRetention}, nil
	}

	if len([]rune(article.Body)) < s.cfg.MinBodyChars {
		return crawl.SaveOutcome{Reason: crawl.ReasonTooShort}, nil
	}

	if err := s.quotas.seedDay(ctx, s.blob, dayKey); err != nil {
		return crawl.SaveOutcome{}, err
	}
	if !s.quotas.reserve(site.Domain, dayKey, site.MaxPerDay) {
		return crawl.SaveOutcome{Reason: crawl.ReasonQuotaReached}, nil
	}

	uri, err := s.blob.PutObject(ctx, path, artifactContentType, []byte(Render(article)))
	if err != nil {
		s.quotas.release(site.Domain, dayKey)
		return crawl.SaveOutcome{}, fmt.Errorf("persist article: %w", err)
	}

	if err := s.cache.MarkCached(site.Domain, article.URL); err != nil {
		s.logger.Warn("mark cached failed", zap.String("url", article.URL), zap.Error(err))
	}

	s.logger.Info("article saved",
		zap.String("url", article.URL),
		zap.String("uri", uri),
	)
	return crawl.SaveOutcome{Stored: true, Path: path}, nil
}

// resolvePath handles title collisions. If the artifact at path came
// from the same URL the save is a no-op; if it came from a different
// URL the new artifact gets a URL-hash suffix.
func (s *Store) resolvePath(ctx context.Context, path, url string) (string, bool, error) {
	data, err := s.blob.GetObject(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("check existing artifact: %w", err)
	}
	if strings.Contains(string(data), "来源："+url) {
		return path, true, nil
	}

	suffixed := strings.TrimSuffix(path, ".txt") + "-" + hash.ShortURL(url) + ".txt"
	data, err = s.blob.GetObject(ctx, suffixed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return suffixed, false, nil
		}
		return "", false, fmt.Errorf("check existing artifact: %w", err)
	}
	if strings.Contains(string(data), "来源："+url) {
		return suffixed, true, nil
	}
	return suffixed, false, nil
}

func (s *Store) outOfRetention(date time.Time) bool {
	age := s.clock.Now().Sub(date)
	return age > time.Duration(s.cfg.RetentionDays)*24*time.Hour
}

// Render produces the artifact text for an article.
func Render(article crawl.Article) string {
	date := "未知"
	if !article.Date.IsZero() {
		date = article.Date.Format("2006-01-02")
	}
	parts := []string{
		"标题：" + article.Title,
		"发布日期：" + date,
		"来源：" + article.URL,
		"网站：" + article.Host(),
	}
	if len(article.Authors) > 0 {
		parts = append(parts, "作者："+strings.Join(article.Authors, ", "))
	}
	parts = append(parts, "", "正文：", article.Body)
	return strings.Join(parts, "\n")
}

// fileName makes a title safe to use as a file name.
func fileName(title string) string {
	title = strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '*', '?', ':', '"', '<', '>', '|':
			return -1
		}
		return r
	}, title)
	title = strings.TrimSpace(title)
	if title == "" {
		title = "article"
	}
	return title
}
