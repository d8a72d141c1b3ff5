package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	FACEBOOK_AUTH_URL  = "https://graph.facebook.com/oauth/access_token"
	FACEBOOK_GRAPH_URL = "https://graph.facebook.com/v18.0"

	facebookPageLimit = 100
	facebookMaxPages  = 10
)

var ErrFacebookUnauthorized = errors.New("facebook graph api rejected credentials")

type FacebookClient struct {
	Config  *clientcredentials.Config
	Client  *http.Client
	BaseURL string
	limiter *rate.Limiter
	mu      sync.Mutex
}

func NewFacebookClient(cfg config.FacebookConfig) *FacebookClient {
	oauthConf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     FACEBOOK_AUTH_URL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}

	return &FacebookClient{
		Config:  oauthConf,
		Client:  oauthConf.Client(context.Background()),
		BaseURL: FACEBOOK_GRAPH_URL,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

func (fc *FacebookClient) RefreshClient() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.Client = fc.Config.Client(context.Background())
}

func (fc *FacebookClient) httpClient() *http.Client {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.Client
}

// FetchPagePosts walks the page feed newest first, stopping at posts older
// than since or after facebookMaxPages pages.
func (fc *FacebookClient) FetchPagePosts(ctx context.Context, pageID string, since time.Time) ([]models.FacebookPost, error) {
	params := url.Values{}
	params.Set("fields", "id,message,created_time")
	params.Set("limit", fmt.Sprintf("%d", facebookPageLimit))
	if !since.IsZero() {
		params.Set("since", fmt.Sprintf("%d", since.Unix()))
	}
	next := fmt.Sprintf("%s/%s/feed?%s", strings.TrimRight(fc.BaseURL, "/"), url.PathEscape(pageID), params.Encode())

	var posts []models.FacebookPost
	for page := 0; next != "" && page < facebookMaxPages; page++ {
		feed, err := fc.fetchFeedWithRetry(ctx, next)
		if err != nil {
			return posts, err
		}
		posts = append(posts, feed.Data...)
		next = feed.Paging.Next
	}

	slog.Info("[FacebookClient] Fetched page posts",
		slog.String("page_id", pageID),
		slog.Int("count", len(posts)))
	return posts, nil
}

func (fc *FacebookClient) fetchFeedWithRetry(ctx context.Context, endpoint string) (models.FacebookFeedResponse, error) {
	backoff := INITIAL_BACKOFF
	refreshed := false
	var lastErr error

	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		feed, status, err := fc.fetchFeed(ctx, endpoint)
		switch {
		case err == nil && status == http.StatusOK:
			return feed, nil
		case status == http.StatusUnauthorized && !refreshed:
			slog.Warn("[FacebookClient] Token expired - Refreshing and Retrying...")
			fc.RefreshClient()
			refreshed = true
			continue
		case status == http.StatusUnauthorized:
			return feed, ErrFacebookUnauthorized
		case status == http.StatusTooManyRequests || status >= 500 || err != nil:
			lastErr = err
			if lastErr == nil {
				lastErr = fmt.Errorf("graph api status %d", status)
			}
		default:
			return feed, fmt.Errorf("[FacebookClient] graph api status %d", status)
		}

		slog.Warn("[FacebookClient] Retrying request",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", lastErr.Error()))

		select {
		case <-ctx.Done():
			return models.FacebookFeedResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MAX_BACKOFF)
	}
	return models.FacebookFeedResponse{}, fmt.Errorf("[FacebookClient] Max retries reached: %w", lastErr)
}

func (fc *FacebookClient) fetchFeed(ctx context.Context, endpoint string) (models.FacebookFeedResponse, int, error) {
	var feed models.FacebookFeedResponse

	if err := fc.limiter.Wait(ctx); err != nil {
		return feed, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return feed, 0, err
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := fc.httpClient().Do(req)
	if err != nil {
		return feed, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feed, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return feed, resp.StatusCode, err
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return feed, resp.StatusCode, fmt.Errorf("[FacebookClient] Failed to decode feed: %w", err)
	}
	return feed, resp.StatusCode, nil
}
