package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/profile"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestExtractor() *Extractor {
	return New(fixedClock{t: testNow}, zap.NewNop())
}

func caijingSite(t *testing.T) *profile.Site {
	t.Helper()
	site := &profile.Site{
		Name:             "caijing",
		Domain:           "example.com",
		StartURL:         "http://example.com/",
		ArticlePattern:   `/\d{8}/\d+\.html`,
		TitleSelectors:   []string{"h1.article-heading"},
		DateSelectors:    []string{"span.pub-time"},
		ContentSelectors: []string{"div.article-content"},
		AuthorSelectors:  []string{"span.author-name"},
		Enabled:          true,
	}
	require.NoError(t, site.Compile())
	return site
}

const articleHTML = `<html><head></head><body>
<h1 class="article-heading">央行宣布下调存款准备金率</h1>
<span class="pub-time">2024-03-22 10:30</span>
<span class="author-name">张伟</span>
<div class="article-content">
<p>中国人民银行今日宣布，下调金融机构存款准备金率0.5个百分点，释放长期资金约一万亿元。</p>
<p>分析人士认为，此举有助于保持流动性合理充裕，支持实体经济发展，降低社会综合融资成本。</p>
</div>
</body></html>`

func TestExtractFullArticle(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)

	article, err := e.Extract([]byte(articleHTML), site, "http://example.com/20240322/123456.html")
	require.NoError(t, err)

	require.Equal(t, "央行宣布下调存款准备金率", article.Title)
	require.Equal(t, time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC), article.Date)
	require.Equal(t, []string{"张伟"}, article.Authors)
	require.Contains(t, article.Body, "存款准备金率")
	require.Contains(t, article.Body, "实体经济")
	require.Equal(t, "example.com", article.Domain)
	require.Equal(t, "http://example.com/20240322/123456.html", article.URL)
}

func TestExtractMissingTitle(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)

	html := `<html><body><div class="article-content"><p>只有正文没有标题的页面内容。</p></div></body></html>`
	_, err := e.Extract([]byte(html), site, "http://example.com/20240322/1.html")
	require.ErrorIs(t, err, crawl.ErrMissingTitle)
}

func TestExtractDateFallsBackToURL(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)

	html := `<html><body>
<h1 class="article-heading">没有日期元素的文章</h1>
<div class="article-content"><p>这篇文章页面里没有任何日期标记，日期只能从链接路径推断出来。</p></div>
</body></html>`

	article, err := e.Extract([]byte(html), site, "http://example.com/20240322/777.html")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC), article.Date)
}

func TestExtractMissingDate(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)

	html := `<html><body>
<h1 class="article-heading">完全没有日期的文章</h1>
<div class="article-content"><p>页面和链接里都找不到日期，这篇文章应当被拒绝。</p></div>
</body></html>`

	_, err := e.Extract([]byte(html), site, "http://example.com/undated/article.html")
	require.ErrorIs(t, err, crawl.ErrMissingDate)
}

func TestExtractMissingBody(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)

	html := `<html><body>
<h1 class="article-heading">只有标题的文章</h1>
<span class="pub-time">2024-03-22</span>
</body></html>`

	_, err := e.Extract([]byte(html), site, "http://example.com/20240322/2.html")
	require.ErrorIs(t, err, crawl.ErrMissingBody)
}

func TestExtractSkipsDenylistedElements(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)
	site.ContentSelectors = []string{"div.article-content div"}

	html := `<html><body>
<h1 class="article-heading">测试拒绝列表</h1>
<span class="pub-time">2024-03-22</span>
<div class="article-content">
<div><p>正文第一段内容，描述了当天市场的整体走势与成交情况。</p></div>
<div class="advertisement"><p>广告内容：立即下载我们的应用获取更多资讯。</p></div>
<div class="related"><p>相关阅读推荐列表。</p></div>
</div>
</body></html>`

	article, err := e.Extract([]byte(html), site, "http://example.com/20240322/3.html")
	require.NoError(t, err)
	require.Contains(t, article.Body, "市场的整体走势")
	require.NotContains(t, article.Body, "立即下载")
	require.NotContains(t, article.Body, "相关阅读")
}

func TestExtractMetaTitlePreferred(t *testing.T) {
	e := newTestExtractor()
	site := caijingSite(t)

	html := `<html><head>
<meta property="og:title" content="OG标题：重要财经新闻"/>
</head><body>
<h1 class="article-heading">页面内标题</h1>
<span class="pub-time">2024-03-22</span>
<div class="article-content"><p>正文内容足够长，覆盖了当日的主要财经事件和市场反应。</p></div>
</body></html>`

	article, err := e.Extract([]byte(html), site, "http://example.com/20240322/4.html")
	require.NoError(t, err)
	require.Equal(t, "OG标题：重要财经新闻", article.Title)
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"  多余   空白\t字符  ":             "多余 空白 字符",
		"新闻标题 - news.com":             "新闻标题",
		"标题/带:非法*字符?":                 "标题-带-非法-字符-",
		"Some Study - Papers with Code": "Some Study",
	}
	for in, want := range cases {
		require.Equal(t, want, cleanTitle(in), "input %q", in)
	}

	long := make([]rune, 250)
	for i := range long {
		long[i] = '字'
	}
	got := cleanTitle(string(long))
	require.Equal(t, 200, len([]rune(got)))
	require.Equal(t, "...", got[len(got)-3:])
}

func TestCleanContent(t *testing.T) {
	in := `当天的新闻正文第一段，包含了足够的中文内容来通过过滤。
当天的新闻正文第一段，包含了足够的中文内容来通过过滤。
var tracker = init();
！！！？？？……
责任编辑：李明
正文第二段继续描述事件的后续发展和各方回应。`

	out := cleanContent(in)
	require.Contains(t, out, "第一段")
	require.Contains(t, out, "第二段")
	require.Equal(t, 1, strings.Count(out, "第一段"), "duplicate lines removed")
	require.NotContains(t, out, "var tracker")
	require.NotContains(t, out, "责任编辑")
	require.NotContains(t, out, "！！！？？？")
}

func TestCleanContentStopsAtTrailingBlankRun(t *testing.T) {
	in := "正文内容已经出现的第一段中文文本。\n\n\n\n页脚导航内容不应保留在正文之中。"
	out := cleanContent(in)
	require.Contains(t, out, "第一段")
	require.NotContains(t, out, "页脚导航")
}
