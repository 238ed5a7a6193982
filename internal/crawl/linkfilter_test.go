package crawl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finsight/newscrawler/internal/profile"
)

type allowAllRobots struct{}

func (allowAllRobots) Allowed(string) bool { return true }

type denyListRobots struct{ denied map[string]struct{} }

func (r denyListRobots) Allowed(rawURL string) bool {
	_, denied := r.denied[rawURL]
	return !denied
}

type stubClock struct{ t time.Time }

func (c stubClock) Now() time.Time { return c.t }

func filterSite(t *testing.T) *profile.Site {
	t.Helper()
	site := &profile.Site{
		Name:            "news",
		Domain:          "example.com",
		StartURL:        "http://news.example.com/",
		ArticlePattern:  `/\d{8}/\d+\.html`,
		ExcludePatterns: []string{`/video/`},
		Enabled:         true,
	}
	require.NoError(t, site.Compile())
	return site
}

func TestLinkFilterValid(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	lf := NewLinkFilter(allowAllRobots{}, 90, stubClock{t: now})
	site := filterSite(t)

	cases := []struct {
		url  string
		want bool
	}{
		{"http://news.example.com/20240520/123.html", true},
		{"https://example.com/plain/page.html", true},
		{"ftp://example.com/20240520/123.html", false},
		{"http://other.org/20240520/123.html", false},
		{"http://news.example.com/photo.jpg", false},
		{"http://news.example.com/report.pdf", false},
		{"http://news.example.com/video/20240520/9.html", false},
		// 120 days old, outside the 90-day window.
		{"http://news.example.com/20240202/123.html", false},
		// Date right at the edge of the window.
		{"http://news.example.com/2024-03-10/123.html", true},
		// Impossible path date.
		{"http://news.example.com/20241301/123.html", false},
		// No date in the path passes the freshness check.
		{"http://news.example.com/undated/story.html", true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, lf.Valid(tc.url, site), "url %s", tc.url)
	}
}

func TestLinkFilterRespectsRobots(t *testing.T) {
	blocked := "http://news.example.com/private/1.html"
	lf := NewLinkFilter(denyListRobots{denied: map[string]struct{}{blocked: {}}}, 90,
		stubClock{t: time.Now().UTC()})
	site := filterSite(t)

	require.False(t, lf.Valid(blocked, site))
	require.True(t, lf.Valid("http://news.example.com/public/1.html", site))
}

func TestLinkFilterAllowListedDomains(t *testing.T) {
	now := time.Now().UTC()
	lf := NewLinkFilter(allowAllRobots{}, 90, stubClock{t: now})
	site := &profile.Site{
		Name:           "multi",
		Domain:         "caijing.com.cn",
		Domains:        []string{"finance.caijing.com.cn", "economy.caijing.com.cn"},
		StartURL:       "http://finance.caijing.com.cn/",
		ArticlePattern: `/\d+\.html`,
		Enabled:        true,
	}
	require.NoError(t, site.Compile())

	require.True(t, lf.Valid("http://finance.caijing.com.cn/1.html", site))
	require.True(t, lf.Valid("http://economy.caijing.com.cn/1.html", site))
	// Host on the primary domain but not in the allow-list.
	require.False(t, lf.Valid("http://www.caijing.com.cn/1.html", site))
}

func TestExtractLinks(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	lf := NewLinkFilter(allowAllRobots{}, 90, stubClock{t: now})
	site := filterSite(t)

	html := `<html><body>
<a href="/20240520/1.html">article one</a>
<a href="http://news.example.com/20240520/2.html">article two</a>
<a href="/20240520/1.html">duplicate link</a>
<a href="#top">anchor</a>
<a href="javascript:void(0)">js</a>
<a href="mailto:desk@example.com">mail</a>
<a href="http://other.org/20240520/3.html">foreign</a>
<a href="/video/20240520/4.html">excluded</a>
</body></html>`

	links := lf.ExtractLinks([]byte(html), "http://news.example.com/index.html", site)
	require.Equal(t, []string{
		"http://news.example.com/20240520/1.html",
		"http://news.example.com/20240520/2.html",
	}, links)
}
