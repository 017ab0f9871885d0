package verifiers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
)

func TestTwitterVerifier(t *testing.T) {
	ctx := context.Background()
	account := &Account{Provider: models.ProviderTwitter, ExternalID: "42"}

	t.Run("FollowerFoundAcrossPages", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/777/followers", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("pagination_token") == "" {
				w.Write([]byte(`{"data":[{"id":"1"},{"id":"2"}],"meta":{"next_token":"page2"}}`))
				return
			}
			w.Write([]byte(`{"data":[{"id":"42"}],"meta":{}}`))
		}))
		defer server.Close()

		v := NewTwitterVerifier(server.URL, "app-token", testLogger(t))
		task := &models.Task{TaskType: models.TaskTwitterFollow, Config: `{"userId":"777"}`}
		result, err := v.Verify(ctx, task, account)
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, "follow", result.Detail["action"])
	})

	t.Run("FollowResolvesUsername", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/users/by/username/tasmil":
				w.Write([]byte(`{"data":{"id":"777","username":"tasmil"}}`))
			case "/users/777/followers":
				w.Write([]byte(`{"data":[{"id":"42"}],"meta":{}}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		v := NewTwitterVerifier(server.URL, "app-token", testLogger(t))
		task := &models.Task{TaskType: models.TaskTwitterFollow, Config: `{"username":"@tasmil"}`}
		result, err := v.Verify(ctx, task, account)
		require.NoError(t, err)
		assert.True(t, result.Verified)
	})

	t.Run("LikeNotFoundFails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tweets/555/liking_users", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"id":"1"}],"meta":{}}`))
		}))
		defer server.Close()

		v := NewTwitterVerifier(server.URL, "app-token", testLogger(t))
		task := &models.Task{TaskType: models.TaskTwitterLike, Config: `{"tweetId":"555"}`}
		result, err := v.Verify(ctx, task, account)
		require.NoError(t, err)
		assert.False(t, result.Verified)
	})

	t.Run("RetweetFoundVerifies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tweets/555/retweeted_by", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"id":"42"}],"meta":{}}`))
		}))
		defer server.Close()

		v := NewTwitterVerifier(server.URL, "app-token", testLogger(t))
		task := &models.Task{TaskType: models.TaskTwitterRetweet, Config: `{"tweetId":"555"}`}
		result, err := v.Verify(ctx, task, account)
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, "retweet", result.Detail["action"])
	})

	t.Run("RateLimitSurfacesAs429", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		v := NewTwitterVerifier(server.URL, "app-token", testLogger(t))
		task := &models.Task{TaskType: models.TaskTwitterLike, Config: `{"tweetId":"555"}`}
		_, err := v.Verify(ctx, task, account)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
	})

	t.Run("NoTokenConfiguredFails", func(t *testing.T) {
		v := NewTwitterVerifier("http://127.0.0.1:0", "", testLogger(t))
		task := &models.Task{TaskType: models.TaskTwitterLike, Config: `{"tweetId":"555"}`}
		_, err := v.Verify(ctx, task, account)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "TWITTER_VERIFICATION_FAILED", appErr.Code)
	})
}
