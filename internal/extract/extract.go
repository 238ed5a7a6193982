// Package extract turns fetched HTML into normalized articles using
// ordered selector fallback chains.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/profile"
)

// Meta selectors tried before anything in the page body.
var (
	metaTitleSelectors = []string{
		`meta[property="og:title"]`,
		`meta[name="title"]`,
		`title`,
	}
	metaDateSelectors = []string{
		`meta[name="weibo:article:create_at"]`,
		`meta[name="article:published_time"]`,
		`meta[property="article:published_time"]`,
		`meta[name="publishdate"]`,
		`meta[name="pubdate"]`,
		`time[datetime]`,
	}
)

// Generic selectors that work across most news layouts.
var (
	genericTitleSelectors = []string{
		"h1",
		".article-title",
		".title",
		"#title",
		"article h1",
		".main-title",
	}
	genericDateSelectors = []string{
		".headerContent .ant-space-item span",
		".time",
		".date",
		".article-time",
		".publish-time",
		".article-date",
		".news-date",
		".post-date",
		".entry-date",
		".meta-date",
		"div.mb-6 div:first-child",
	}
)

// Extractor implements crawl.Extractor with goquery.
type Extractor struct {
	clock  crawl.Clock
	logger *zap.Logger
}

// New builds an Extractor.
func New(clock crawl.Clock, logger *zap.Logger) *Extractor {
	return &Extractor{clock: clock, logger: logger}
}

// Extract parses the page and returns a normalized Article. Title,
// date, and body are mandatory; each failure is a typed rejection.
func (e *Extractor) Extract(body []byte, site *profile.Site, rawURL string) (crawl.Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawl.Article{}, fmt.Errorf("parse html: %w", err)
	}

	title := e.extractTitle(doc, site)
	if title == "" {
		return crawl.Article{}, fmt.Errorf("%w: %s", crawl.ErrMissingTitle, rawURL)
	}

	date, ok := e.extractDate(doc, site, rawURL)
	if !ok {
		return crawl.Article{}, fmt.Errorf("%w: %s", crawl.ErrMissingDate, rawURL)
	}

	content := e.extractContent(doc, site)
	if content == "" {
		return crawl.Article{}, fmt.Errorf("%w: %s", crawl.ErrMissingBody, rawURL)
	}

	var authors []string
	if author := firstText(doc, site.AuthorSelectors); author != "" {
		authors = []string{author}
	}

	return crawl.Article{
		URL:     rawURL,
		Domain:  site.Domain,
		Title:   title,
		Date:    date,
		Authors: authors,
		Body:    content,
	}, nil
}

func (e *Extractor) extractTitle(doc *goquery.Document, site *profile.Site) string {
	if title := metaContent(doc, metaTitleSelectors); title != "" {
		if cleaned := cleanTitle(title); cleaned != "" {
			return cleaned
		}
	}
	for _, selectors := range [][]string{site.TitleSelectors, genericTitleSelectors} {
		if title := firstText(doc, selectors); title != "" {
			if cleaned := cleanTitle(title); cleaned != "" {
				return cleaned
			}
		}
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return cleanTitle(og)
	}
	return ""
}

func (e *Extractor) extractDate(doc *goquery.Document, site *profile.Site, rawURL string) (time.Time, bool) {
	now := e.clock.Now()

	if raw := firstText(doc, genericDateSelectors); raw != "" {
		if d, ok := NormalizeDate(raw, now); ok {
			return d, true
		}
	}
	if raw := metaContent(doc, metaDateSelectors); raw != "" {
		if d, ok := NormalizeDate(raw, now); ok {
			return d, true
		}
	}
	if raw := firstText(doc, site.DateSelectors); raw != "" {
		if d, ok := NormalizeDate(raw, now); ok {
			return d, true
		}
		if site.DateFormat != "" {
			if d, err := time.Parse(site.DateFormat, strings.TrimSpace(raw)); err == nil {
				return d, true
			}
		}
	}
	return DateFromURL(rawURL)
}

func (e *Extractor) extractContent(doc *goquery.Document, site *profile.Site) string {
	var parts []string
	seen := make(map[string]struct{})
	for _, selector := range site.ContentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if shouldSkip(s) {
				return
			}
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			if _, dup := seen[text]; dup {
				return
			}
			seen[text] = struct{}{}
			parts = append(parts, text)
		})
	}
	return cleanContent(strings.Join(parts, "\n"))
}

func shouldSkip(s *goquery.Selection) bool {
	if class, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			if _, skip := skipClasses[c]; skip {
				return true
			}
		}
	}
	if len(s.Nodes) > 0 {
		if _, skip := skipTags[s.Nodes[0].Data]; skip {
			return true
		}
	}
	return false
}

// firstText returns the trimmed text of the first selector that
// matches a non-empty element.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}
	return ""
}

// metaContent returns the content attribute (or text) of the first
// matching meta-style selector.
func metaContent(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
		if content, ok := sel.Attr("datetime"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}
	return ""
}

// Site-name suffixes stripped from titles.
var titleSuffixRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-_]\s*Papers\s+with\s+Code\s*$`),
	regexp.MustCompile(`(?i)\s*[-_]\s*\|\s*Papers\s+with\s+Code\s*$`),
	regexp.MustCompile(`(?i)\s*\|\s*Papers\s+with\s+Code\s*$`),
	regexp.MustCompile(`(?i)\s*[-_]\s*arXiv\s*$`),
	regexp.MustCompile(`(?i)\s*[-_]\s*GitHub\s*$`),
	regexp.MustCompile(`(?i)\s*[-_|]\s*.*?\.com\s*$`),
	regexp.MustCompile(`(?i)\s*[-_|]\s*.*?\.org\s*$`),
}

var invalidFileCharRe = regexp.MustCompile(`[<>:"/\\|?*]`)

// cleanTitle normalizes whitespace, drops site-name suffixes, and
// makes the title safe to use as a file name.
func cleanTitle(title string) string {
	if title == "" {
		return ""
	}
	title = strings.Join(strings.Fields(title), " ")
	for _, re := range titleSuffixRes {
		title = re.ReplaceAllString(title, "")
	}
	title = invalidFileCharRe.ReplaceAllString(title, "-")

	runes := []rune(title)
	if len(runes) > 200 {
		title = string(runes[:197]) + "..."
	}
	return strings.TrimSpace(title)
}
