package verifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

const defaultDiscordAPIBase = "https://discord.com/api/v10"

// DiscordVerifier checks guild membership by listing the user's guilds
// with their own OAuth token. This needs the "guilds" scope granted at
// link time; a bot token is not required.
type DiscordVerifier struct {
	apiBase string
	client  *http.Client
	log     *logger.Logger
}

func NewDiscordVerifier(apiBase string, appLogger *logger.Logger) *DiscordVerifier {
	if apiBase == "" {
		apiBase = defaultDiscordAPIBase
	}
	return &DiscordVerifier{
		apiBase: apiBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     appLogger,
	}
}

func (v *DiscordVerifier) Supports(taskType models.TaskType) bool {
	return taskType == models.TaskDiscordJoin
}

type discordGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (v *DiscordVerifier) Verify(ctx context.Context, task *models.Task, account *Account) (*Result, error) {
	cfg, err := task.ParseConfig()
	if err != nil {
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", "Task config is invalid")
	}
	guildID := cfg.GuildID
	if guildID == "" {
		guildID = cfg.ServerID
	}
	if guildID == "" {
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", "Task has no discord server configured")
	}
	if account.AccessToken == "" {
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", "Discord account has no usable token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBase+"/users/@me/guilds", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn("Discord guild listing failed", "error", err)
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", "Could not reach discord")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", "Discord token expired, relink your account")
	}
	if resp.StatusCode != http.StatusOK {
		v.log.Warn("Discord guild listing returned non-200", "status", resp.StatusCode)
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", fmt.Sprintf("Discord returned status %d", resp.StatusCode))
	}

	var guilds []discordGuild
	if err := json.NewDecoder(resp.Body).Decode(&guilds); err != nil {
		return nil, apperr.BadRequest("DISCORD_VERIFICATION_FAILED", "Unexpected discord response")
	}

	for _, guild := range guilds {
		if guild.ID == guildID {
			return &Result{
				Verified: true,
				Detail:   map[string]any{"provider": "discord", "guildId": guild.ID, "guildName": guild.Name},
			}, nil
		}
	}
	return &Result{
		Verified: false,
		Detail:   map[string]any{"provider": "discord", "guildId": guildID},
	}, nil
}
