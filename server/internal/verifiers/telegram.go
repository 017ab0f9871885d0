package verifiers

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

// TelegramVerifier confirms chat membership through the bot API. The bot
// must itself be a member of the target chat for getChatMember to work.
type TelegramVerifier struct {
	bot *telego.Bot
	log *logger.Logger
}

func NewTelegramVerifier(bot *telego.Bot, appLogger *logger.Logger) *TelegramVerifier {
	return &TelegramVerifier{bot: bot, log: appLogger}
}

func (v *TelegramVerifier) Supports(taskType models.TaskType) bool {
	return taskType == models.TaskTelegramJoin
}

func (v *TelegramVerifier) Verify(ctx context.Context, task *models.Task, account *Account) (*Result, error) {
	if v.bot == nil {
		return nil, apperr.BadRequest("TELEGRAM_VERIFICATION_FAILED", "Telegram verification is not configured")
	}
	cfg, err := task.ParseConfig()
	if err != nil || cfg.GroupID == "" {
		return nil, apperr.BadRequest("TELEGRAM_VERIFICATION_FAILED", "Task has no telegram group configured")
	}
	userID, err := strconv.ParseInt(account.ExternalID, 10, 64)
	if err != nil {
		return nil, apperr.BadRequest("TELEGRAM_VERIFICATION_FAILED", "Linked telegram account is invalid")
	}

	member, err := v.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: chatIDFromConfig(cfg.GroupID),
		UserID: userID,
	})
	if err != nil {
		v.log.Warn("Telegram getChatMember failed", "group", cfg.GroupID, "error", err)
		return nil, apperr.BadRequest("TELEGRAM_VERIFICATION_FAILED", "Could not verify telegram membership")
	}

	status := member.MemberStatus()
	verified := status == telego.MemberStatusMember ||
		status == telego.MemberStatusAdministrator ||
		status == telego.MemberStatusCreator
	return &Result{
		Verified: verified,
		Detail:   map[string]any{"provider": "telegram", "chat": cfg.GroupID, "memberStatus": status},
	}, nil
}

// chatIDFromConfig accepts a numeric chat id or a public @username.
func chatIDFromConfig(raw string) telego.ChatID {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return telego.ChatID{ID: id}
	}
	if !strings.HasPrefix(raw, "@") {
		raw = "@" + raw
	}
	return telego.ChatID{Username: raw}
}
