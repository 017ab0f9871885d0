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
	"tasmil/shared/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	appLogger, err := logger.NewLogger(logger.Config{Level: "error", Environment: "development"})
	require.NoError(t, err)
	return appLogger
}

func discordTask(t *testing.T, guildID string) *models.Task {
	t.Helper()
	return &models.Task{
		ID:       "task-1",
		TaskType: models.TaskDiscordJoin,
		Config:   `{"guildId":"` + guildID + `"}`,
	}
}

func TestDiscordVerifier(t *testing.T) {
	ctx := context.Background()
	account := &Account{Provider: models.ProviderDiscord, ExternalID: "99", AccessToken: "user-token"}

	t.Run("MemberOfGuildVerifies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/@me/guilds", r.URL.Path)
			assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":"111","name":"Other"},{"id":"222","name":"Target"}]`))
		}))
		defer server.Close()

		v := NewDiscordVerifier(server.URL, testLogger(t))
		result, err := v.Verify(ctx, discordTask(t, "222"), account)
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, "Target", result.Detail["guildName"])
	})

	t.Run("NonMemberFails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":"111","name":"Other"}]`))
		}))
		defer server.Close()

		v := NewDiscordVerifier(server.URL, testLogger(t))
		result, err := v.Verify(ctx, discordTask(t, "222"), account)
		require.NoError(t, err)
		assert.False(t, result.Verified)
	})

	t.Run("ExpiredTokenIsBusinessError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		v := NewDiscordVerifier(server.URL, testLogger(t))
		_, err := v.Verify(ctx, discordTask(t, "222"), account)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "DISCORD_VERIFICATION_FAILED", appErr.Code)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
	})

	t.Run("MissingGuildConfigFails", func(t *testing.T) {
		v := NewDiscordVerifier("http://127.0.0.1:0", testLogger(t))
		task := &models.Task{ID: "task-1", TaskType: models.TaskDiscordJoin, Config: `{}`}
		_, err := v.Verify(ctx, task, account)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "DISCORD_VERIFICATION_FAILED", appErr.Code)
	})
}
