// Package publisher defines the saved-article event and its sink.
package publisher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
)

// ArticleEvent is the payload published for every persisted article.
type ArticleEvent struct {
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Authors   []string  `json:"authors,omitempty"`
	Path      string    `json:"path"`
	BodyChars int       `json:"body_chars"`
	SavedAt   time.Time `json:"saved_at"`
}

// EventSink adapts a Publisher to the crawl.SavedSink interface.
type EventSink struct {
	pub    crawl.Publisher
	topic  string
	clock  crawl.Clock
	logger *zap.Logger
}

// NewEventSink builds an EventSink publishing to the given topic.
func NewEventSink(pub crawl.Publisher, topic string, clock crawl.Clock, logger *zap.Logger) *EventSink {
	return &EventSink{pub: pub, topic: topic, clock: clock, logger: logger}
}

// ArticleSaved publishes one event per persisted article.
func (s *EventSink) ArticleSaved(ctx context.Context, article crawl.Article, path string) error {
	event := ArticleEvent{
		URL:       article.URL,
		Domain:    article.Domain,
		Title:     article.Title,
		Date:      article.Date.Format("2006-01-02"),
		Authors:   article.Authors,
		Path:      path,
		BodyChars: len([]rune(article.Body)),
		SavedAt:   s.clock.Now(),
	}
	id, err := s.pub.Publish(ctx, s.topic, event)
	if err != nil {
		return fmt.Errorf("publish article event: %w", err)
	}
	s.logger.Debug("article event published",
		zap.String("url", article.URL),
		zap.String("message_id", id),
	)
	return nil
}
