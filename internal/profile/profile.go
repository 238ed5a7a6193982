// Package profile holds the declarative per-site crawl configuration.
// Site-specific behavior is expressed as data (selectors, patterns,
// caps) rather than as alternate code paths.
package profile

import (
	"fmt"
	"regexp"
	"strings"
)

// Site describes one crawl target. Immutable once loaded; shared
// read-only across all workers of its domain.
type Site struct {
	Name             string   `mapstructure:"name"`
	Domain           string   `mapstructure:"domain"`
	Domains          []string `mapstructure:"domains"`
	StartURL         string   `mapstructure:"start_url"`
	ArticlePattern   string   `mapstructure:"article_pattern"`
	ExcludePatterns  []string `mapstructure:"exclude_patterns"`
	TitleSelectors   []string `mapstructure:"title_selectors"`
	DateSelectors    []string `mapstructure:"date_selectors"`
	ContentSelectors []string `mapstructure:"content_selectors"`
	AuthorSelectors  []string `mapstructure:"author_selectors"`
	DateFormat       string   `mapstructure:"date_format"`
	MaxPerDay        int      `mapstructure:"max_articles_per_day"`
	Enabled          bool     `mapstructure:"enabled"`
	RenderJS         bool     `mapstructure:"render_js"`

	articleRe  *regexp.Regexp
	excludeRes []*regexp.Regexp
	allowed    map[string]struct{}
}

const defaultMaxPerDay = 100

// Compile validates the profile and prepares its matchers. It must be
// called once after loading, before the profile is shared.
func (s *Site) Compile() error {
	if s.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if s.Domain == "" {
		return fmt.Errorf("profile %s: domain is required", s.Name)
	}
	if s.StartURL == "" {
		return fmt.Errorf("profile %s: start_url is required", s.Name)
	}
	if s.ArticlePattern == "" {
		return fmt.Errorf("profile %s: article_pattern is required", s.Name)
	}
	if s.MaxPerDay <= 0 {
		s.MaxPerDay = defaultMaxPerDay
	}

	re, err := regexp.Compile(s.ArticlePattern)
	if err != nil {
		return fmt.Errorf("profile %s: article_pattern: %w", s.Name, err)
	}
	s.articleRe = re

	s.excludeRes = s.excludeRes[:0]
	for _, pat := range s.ExcludePatterns {
		exRe, exErr := regexp.Compile(pat)
		if exErr != nil {
			return fmt.Errorf("profile %s: exclude_pattern %q: %w", s.Name, pat, exErr)
		}
		s.excludeRes = append(s.excludeRes, exRe)
	}

	s.allowed = make(map[string]struct{}, len(s.Domains))
	for _, d := range s.Domains {
		s.allowed[strings.ToLower(d)] = struct{}{}
	}
	return nil
}

// IsArticleURL reports whether the URL matches the site's article
// pattern (unanchored search, like the original configuration tables).
func (s *Site) IsArticleURL(rawURL string) bool {
	if s.articleRe == nil {
		return false
	}
	return s.articleRe.MatchString(rawURL)
}

// IsExcluded reports whether any exclude pattern matches the URL.
func (s *Site) IsExcluded(rawURL string) bool {
	for _, re := range s.excludeRes {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// HostAllowed reports whether a discovered link's host belongs to the
// site. With an explicit allow-list the host must be listed; otherwise
// a substring match against the primary domain is used.
func (s *Site) HostAllowed(host string) bool {
	host = strings.ToLower(host)
	if len(s.allowed) > 0 {
		_, ok := s.allowed[host]
		return ok
	}
	return strings.Contains(host, strings.ToLower(s.Domain))
}

// EnabledSites compiles and returns the enabled profiles from a loaded
// list. It fails when no profile is enabled, since a crawl run without
// sites is a configuration error.
func EnabledSites(sites []Site) ([]*Site, error) {
	out := make([]*Site, 0, len(sites))
	for i := range sites {
		if !sites[i].Enabled {
			continue
		}
		if err := sites[i].Compile(); err != nil {
			return nil, err
		}
		out = append(out, &sites[i])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no enabled site profiles")
	}
	return out, nil
}
