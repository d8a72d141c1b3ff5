// Package producer pulls posts from social sources and hands them to the
// upload pipeline.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
)

const facebookTimeLayout = "2006-01-02T15:04:05-0700"

type PostSource interface {
	FetchPagePosts(ctx context.Context, pageID string, since time.Time) ([]models.FacebookPost, error)
}

type ProcessedSet interface {
	IsProcessed(ctx context.Context, source models.FeedbackSource, key string) bool
	MarkProcessed(ctx context.Context, source models.FeedbackSource, key string) error
}

type UploadPublisher interface {
	PublishUploads(ctx context.Context, source models.FeedbackSource, messages []models.ChatMessage) (string, error)
}

type FacebookFetcher struct {
	posts     PostSource
	processed ProcessedSet
	publisher UploadPublisher
	pageID    string
	lookback  time.Duration
	now       func() time.Time
}

// NewFacebookFetcher fetches posts newer than now-lookback on every run.
func NewFacebookFetcher(posts PostSource, processed ProcessedSet, publisher UploadPublisher, pageID string, lookback time.Duration) *FacebookFetcher {
	return &FacebookFetcher{
		posts:     posts,
		processed: processed,
		publisher: publisher,
		pageID:    pageID,
		lookback:  lookback,
		now:       time.Now,
	}
}

// FetchAndPublish publishes every unseen post with a message body as one
// upload and returns how many were published.
func (f *FacebookFetcher) FetchAndPublish(ctx context.Context) (int, error) {
	slog.Info("[FacebookFetcher] Fetching page posts...", slog.String("page_id", f.pageID))

	var since time.Time
	if f.lookback > 0 {
		since = f.now().Add(-f.lookback)
	}

	posts, err := f.posts.FetchPagePosts(ctx, f.pageID, since)
	if err != nil && len(posts) == 0 {
		return 0, fmt.Errorf("fetch page posts: %w", err)
	}
	if err != nil {
		slog.Warn("[FacebookFetcher] Partial fetch, publishing what was read",
			slog.Int("posts", len(posts)),
			slog.String("error", err.Error()))
	}

	var (
		messages []models.ChatMessage
		keys     []string
	)
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		key := f.dedupeKey(post)
		if strings.TrimSpace(post.Message) == "" || f.processed.IsProcessed(ctx, models.SourceFacebook, key) {
			continue
		}
		messages = append(messages, postToMessage(post, f.now))
		keys = append(keys, key)
	}

	if len(messages) == 0 {
		slog.Info("[FacebookFetcher] No new posts")
		return 0, nil
	}

	uploadID, err := f.publisher.PublishUploads(ctx, models.SourceFacebook, messages)
	if err != nil {
		return 0, fmt.Errorf("publish posts: %w", err)
	}

	for _, key := range keys {
		if err := f.processed.MarkProcessed(ctx, models.SourceFacebook, key); err != nil {
			slog.Warn("[FacebookFetcher] Error marking post as processed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("[FacebookFetcher] Published page posts",
		slog.String("upload_id", uploadID),
		slog.Int("posts", len(messages)))
	return len(messages), nil
}

func (f *FacebookFetcher) dedupeKey(post models.FacebookPost) string {
	return fmt.Sprintf("%s:%s", f.pageID, post.ID)
}

func postToMessage(post models.FacebookPost, now func() time.Time) models.ChatMessage {
	ts, err := time.Parse(facebookTimeLayout, post.CreatedTime)
	if err != nil {
		ts = now()
	}
	return models.ChatMessage{
		Content:   strings.TrimSpace(post.Message),
		Timestamp: ts.UTC(),
		Spectrum:  models.UnspecifiedSpectrum,
	}
}
