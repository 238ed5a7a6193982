// Package config loads application settings from a config file and
// environment variables through Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/finsight/newscrawler/internal/profile"
)

// Crawler holds the caps and limits of a crawl run.
type Crawler struct {
	MaxArticles   int `mapstructure:"max_articles"`
	MaxPerSite    int `mapstructure:"max_articles_per_site"`
	RetentionDays int `mapstructure:"retention_days"`
	FreshnessDays int `mapstructure:"freshness_days"`
	Concurrency   int `mapstructure:"concurrency_per_domain"`
	MinBodyChars  int `mapstructure:"min_body_chars"`
}

// HTTP holds fetch client settings.
type HTTP struct {
	Timeout    time.Duration     `mapstructure:"timeout"`
	MaxRetries int               `mapstructure:"max_retries"`
	RetryBase  time.Duration     `mapstructure:"retry_base"`
	DelayMin   time.Duration     `mapstructure:"delay_min"`
	DelayMax   time.Duration     `mapstructure:"delay_max"`
	Headers    map[string]string `mapstructure:"headers"`
}

// Politeness holds robots.txt handling settings.
type Politeness struct {
	UserAgent  string        `mapstructure:"user_agent"`
	RobotsTTL  time.Duration `mapstructure:"robots_ttl"`
	CachePath  string        `mapstructure:"robots_cache_path"`
	RatePerSec float64       `mapstructure:"rate_per_second"`
}

// Cache holds dedup cache settings.
type Cache struct {
	Path          string        `mapstructure:"path"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// Storage selects where article artifacts are written.
type Storage struct {
	BaseDir        string `mapstructure:"base_dir"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	CleanupEnabled bool   `mapstructure:"cleanup_enabled"`
}

// Catalog holds the optional Postgres article catalog settings.
type Catalog struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// PubSub holds the optional saved-article event settings.
type PubSub struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Ops holds the health and metrics endpoint settings.
type Ops struct {
	Addr string `mapstructure:"addr"`
}

// Logging holds logger settings.
type Logging struct {
	Development bool `mapstructure:"development"`
}

// Config is the root of the application's configuration.
type Config struct {
	Crawler    Crawler        `mapstructure:"crawler"`
	HTTP       HTTP           `mapstructure:"http"`
	Politeness Politeness     `mapstructure:"politeness"`
	Cache      Cache          `mapstructure:"cache"`
	Storage    Storage        `mapstructure:"storage"`
	Catalog    Catalog        `mapstructure:"catalog"`
	PubSub     PubSub         `mapstructure:"pubsub"`
	Ops        Ops            `mapstructure:"ops"`
	Logging    Logging        `mapstructure:"logging"`
	Sites      []profile.Site `mapstructure:"sites"`
}

const defaultUserAgent = "Mozilla/5.0 (compatible; FinsightNewsBot/1.0; +https://github.com/finsight/newscrawler)"

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_articles", 500)
	v.SetDefault("crawler.max_articles_per_site", 100)
	v.SetDefault("crawler.retention_days", 30)
	v.SetDefault("crawler.freshness_days", 90)
	v.SetDefault("crawler.concurrency_per_domain", 3)
	v.SetDefault("crawler.min_body_chars", 200)

	v.SetDefault("http.timeout", "20s")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_base", "1s")
	v.SetDefault("http.delay_min", "1s")
	v.SetDefault("http.delay_max", "3s")
	v.SetDefault("http.headers", map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	})

	v.SetDefault("politeness.user_agent", defaultUserAgent)
	v.SetDefault("politeness.robots_ttl", "168h")
	v.SetDefault("politeness.robots_cache_path", "data/cache/robots.json")
	v.SetDefault("politeness.rate_per_second", 1.0)

	v.SetDefault("cache.path", "data/cache/visited.json")
	v.SetDefault("cache.flush_interval", "30s")

	v.SetDefault("storage.base_dir", "data/articles")
	v.SetDefault("storage.cleanup_enabled", false)

	v.SetDefault("ops.addr", ":9090")
	v.SetDefault("logging.development", false)
}

// Load reads configuration from the given file (or the default search
// paths when path is empty) and the NEWSCRAWLER_* environment, then
// validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NEWSCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/newscrawler/")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Crawler.MaxArticles <= 0 {
		return fmt.Errorf("crawler.max_articles must be positive")
	}
	if c.Crawler.MaxPerSite <= 0 {
		return fmt.Errorf("crawler.max_articles_per_site must be positive")
	}
	if c.Crawler.RetentionDays <= 0 {
		return fmt.Errorf("crawler.retention_days must be positive")
	}
	if c.Crawler.FreshnessDays <= 0 {
		return fmt.Errorf("crawler.freshness_days must be positive")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency_per_domain must be positive")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be positive")
	}
	if c.HTTP.DelayMax < c.HTTP.DelayMin {
		return fmt.Errorf("http.delay_max must be >= http.delay_min")
	}
	if c.Politeness.RobotsTTL <= 0 {
		return fmt.Errorf("politeness.robots_ttl must be positive")
	}
	if c.Storage.BaseDir == "" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.base_dir or storage.gcs_bucket is required")
	}
	if c.Catalog.Enabled && c.Catalog.DSN == "" {
		return fmt.Errorf("catalog.dsn is required when catalog is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic are required when pubsub is enabled")
	}
	return nil
}
