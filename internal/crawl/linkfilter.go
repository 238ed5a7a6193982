package crawl

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/finsight/newscrawler/internal/profile"
)

// binaryExtensions mark URLs that can never be article pages.
var binaryExtensions = []string{".jpg", ".png", ".pdf", ".zip"}

// Date-bearing URL path segments, used for the freshness check.
var urlFreshnessPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(\d{4})(\d{2})(\d{2})/`),
	regexp.MustCompile(`/(\d{4})-(\d{2})-(\d{2})/`),
}

// LinkFilter decides which discovered links enter the frontier.
type LinkFilter struct {
	robots        RobotsPolicy
	freshnessDays int
	clock         Clock
}

// NewLinkFilter builds a LinkFilter.
func NewLinkFilter(robots RobotsPolicy, freshnessDays int, clock Clock) *LinkFilter {
	if freshnessDays <= 0 {
		freshnessDays = 90
	}
	return &LinkFilter{robots: robots, freshnessDays: freshnessDays, clock: clock}
}

// Valid reports whether the URL is worth crawling for the site: allowed
// by robots.txt, on an allowed host, http(s), not a binary asset, not
// excluded by the profile, and not older than the freshness window when
// its path carries a date.
func (lf *LinkFilter) Valid(rawURL string, site *profile.Site) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !lf.robots.Allowed(rawURL) {
		return false
	}
	if !site.HostAllowed(parsed.Hostname()) {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	for _, ext := range binaryExtensions {
		if strings.Contains(rawURL, ext) {
			return false
		}
	}
	if site.IsExcluded(rawURL) {
		return false
	}
	return lf.freshEnough(rawURL)
}

// freshEnough rejects URLs whose path date falls outside the freshness
// window. URLs without a recognizable date pass.
func (lf *LinkFilter) freshEnough(rawURL string) bool {
	for _, re := range urlFreshnessPatterns {
		m := re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return false
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day || int(d.Month()) != month {
			return false
		}
		age := lf.clock.Now().Sub(d)
		return age <= time.Duration(lf.freshnessDays)*24*time.Hour
	}
	return true
}

// ExtractLinks pulls all anchor targets from the page, resolves them
// against the base URL, and keeps those that pass the filter.
func (lf *LinkFilter) ExtractLinks(body []byte, baseURL string, site *profile.Site) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref).String()
		if _, dup := seen[absolute]; dup {
			return
		}
		seen[absolute] = struct{}{}
		if lf.Valid(absolute, site) {
			links = append(links, absolute)
		}
	})
	return links
}
