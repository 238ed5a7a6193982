package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/publisher/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestEventSinkPublishesArticleEvent(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	now := time.Date(2024, 3, 25, 8, 0, 0, 0, time.UTC)
	sink := NewEventSink(pub, "articles.saved", fixedClock{t: now}, zap.NewNop())

	article := crawl.Article{
		URL:     "http://example.com/20240322/1.html",
		Domain:  "example.com",
		Title:   "央行宣布下调存款准备金率",
		Date:    time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC),
		Authors: []string{"张伟"},
		Body:    "正文内容",
	}
	err := sink.ArticleSaved(context.Background(), article, "2024-03-22/example.com/央行宣布下调存款准备金率.txt")
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "articles.saved", msgs[0].Topic)

	event, ok := msgs[0].Payload.(ArticleEvent)
	require.True(t, ok)
	require.Equal(t, article.URL, event.URL)
	require.Equal(t, "2024-03-22", event.Date)
	require.Equal(t, []string{"张伟"}, event.Authors)
	require.Equal(t, 4, event.BodyChars)
	require.Equal(t, now, event.SavedAt)
}
