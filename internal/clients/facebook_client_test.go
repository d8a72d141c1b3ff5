package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacebookClient(t *testing.T, mux *http.ServeMux) (*FacebookClient, *httptest.Server) {
	t.Helper()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	fc := NewFacebookClient(config.FacebookConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RatePerSec:   1000,
	})
	fc.Config.TokenURL = ts.URL + "/token"
	fc.BaseURL = ts.URL
	fc.RefreshClient()
	return fc, ts
}

func TestFacebookClient_FollowsPaging(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "id,message,created_time", r.URL.Query().Get("fields"))

		var feed models.FacebookFeedResponse
		feed.Data = []models.FacebookPost{{ID: "1", Message: "first post", CreatedTime: "2024-01-02T10:00:00+0000"}}
		feed.Paging.Next = serverURL + "/next"
		_ = json.NewEncoder(w).Encode(feed)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		var feed models.FacebookFeedResponse
		feed.Data = []models.FacebookPost{{ID: "2", Message: "second post"}}
		_ = json.NewEncoder(w).Encode(feed)
	})

	fc, ts := newTestFacebookClient(t, mux)
	serverURL = ts.URL

	posts, err := fc.FetchPagePosts(context.Background(), "page-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "1", posts[0].ID)
	assert.Equal(t, "2", posts[1].ID)
}

func TestFacebookClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"9","message":"ok"}]}`))
	})

	fc, _ := newTestFacebookClient(t, mux)

	posts, err := fc.FetchPagePosts(context.Background(), "page-1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFacebookClient_UnauthorizedAfterRefresh(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	fc, _ := newTestFacebookClient(t, mux)

	_, err := fc.FetchPagePosts(context.Background(), "page-1", time.Time{})
	assert.ErrorIs(t, err, ErrFacebookUnauthorized)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFacebookClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	fc, _ := newTestFacebookClient(t, mux)

	_, err := fc.FetchPagePosts(context.Background(), "page-1", time.Time{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
