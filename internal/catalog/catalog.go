// Package catalog indexes persisted articles in Postgres so downstream
// jobs can query what the crawler collected.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/newscrawler/internal/crawl"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool behind the catalog.
type Config struct {
	DSN             string
	Table           string
	RunID           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Catalog writes one row per persisted article. It implements
// crawl.SavedSink.
type Catalog struct {
	pool  execCloser
	table string
	runID string
	clock crawl.Clock
}

// New connects a pool and returns a Catalog.
func New(ctx context.Context, cfg Config, clock crawl.Clock) (*Catalog, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("catalog.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Catalog{pool: pool, table: table, runID: cfg.RunID, clock: clock}, nil
}

// NewWithPool constructs a Catalog from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table, runID string, clock crawl.Clock) (*Catalog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Catalog{pool: pool, table: table, runID: runID, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (c *Catalog) Close() {
	if c == nil || c.pool == nil {
		return
	}
	c.pool.Close()
}

// ArticleSaved inserts the article's catalog row. Conflicting URLs are
// left untouched so re-crawls stay idempotent.
func (c *Catalog) ArticleSaved(ctx context.Context, article crawl.Article, path string) error {
	if c == nil || c.pool == nil {
		return fmt.Errorf("catalog is not configured")
	}
	authorsJSON, err := json.Marshal(article.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	url,
	domain,
	title,
	published_date,
	authors,
	artifact_path,
	body_chars,
	run_id,
	saved_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (url) DO NOTHING`, c.table)

	args := []any{
		article.URL,
		article.Domain,
		article.Title,
		article.Date,
		authorsJSON,
		path,
		len([]rune(article.Body)),
		c.runID,
		c.clock.Now(),
	}
	if _, err := c.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}
