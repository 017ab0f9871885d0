package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tasmil/server/internal/models"
	"tasmil/server/internal/verifiers"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

// VerificationService runs provider checks for social tasks and routes
// successes into the progress tracker. Verification never touches points;
// an approved claim does that later.
type VerificationService struct {
	db        *gorm.DB
	registry  *verifiers.Registry
	userTasks *UserTasksService
	log       *logger.Logger
}

func NewVerificationService(db *gorm.DB, registry *verifiers.Registry, userTasks *UserTasksService, appLogger *logger.Logger) *VerificationService {
	return &VerificationService{db: db, registry: registry, userTasks: userTasks, log: appLogger}
}

// VerifyTask checks the task's provider action for the user. A passing
// check marks the task completed; a failing one returns a business error
// and leaves the progress row untouched.
func (s *VerificationService) VerifyTask(ctx context.Context, userID, taskID string) (*models.UserTask, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("TASK_NOT_FOUND", "Task not found")
		}
		return nil, err
	}

	verifier := s.registry.For(task.TaskType)
	if verifier == nil {
		return nil, apperr.BadRequest("UNSUPPORTED_TASK_TYPE", "This task type has no automatic verification")
	}

	provider, ok := providerForTaskType(task.TaskType)
	if !ok {
		return nil, apperr.BadRequest("UNSUPPORTED_TASK_TYPE", "This task type has no automatic verification")
	}

	account, err := s.linkedAccount(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	result, err := verifier.Verify(ctx, &task, account)
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		return nil, apperr.BadRequest("TASK_NOT_COMPLETED", "The required action was not found on "+string(provider))
	}

	s.log.Info("Task verified", "user", userID, "task", taskID, "provider", provider)
	return s.userTasks.MarkCompleted(ctx, userID, &task, result.Detail)
}

func (s *VerificationService) linkedAccount(ctx context.Context, userID string, provider models.SocialProvider) (*verifiers.Account, error) {
	var record models.UserSocialAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.BadRequest("SOCIAL_ACCOUNT_NOT_LINKED", "Link your "+string(provider)+" account first")
		}
		return nil, err
	}
	return &verifiers.Account{
		Provider:    record.Provider,
		ExternalID:  record.ExternalUserID,
		Username:    record.Username,
		AccessToken: record.AccessToken,
	}, nil
}

// LinkInput carries the externally-obtained identity for an account link.
// OAuth code exchange happens upstream; this stores the outcome.
type LinkInput struct {
	Provider    models.SocialProvider
	ExternalID  string
	Username    string
	AccessToken string
}

// LinkAccount upserts the user's identity for one provider. Relinks
// replace the stored identity and token.
func (s *VerificationService) LinkAccount(ctx context.Context, userID string, input LinkInput) (*models.UserSocialAccount, error) {
	if input.ExternalID == "" {
		return nil, apperr.BadRequest("INVALID_SOCIAL_ACCOUNT", "Missing external account id")
	}
	switch input.Provider {
	case models.ProviderTelegram, models.ProviderDiscord, models.ProviderTwitter:
	default:
		return nil, apperr.BadRequest("INVALID_SOCIAL_ACCOUNT", "Unknown provider")
	}

	var record models.UserSocialAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, input.Provider).
		First(&record).Error
	switch {
	case err == nil:
		record.ExternalUserID = input.ExternalID
		record.Username = input.Username
		record.AccessToken = input.AccessToken
		if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = models.UserSocialAccount{
			UserID:         userID,
			Provider:       input.Provider,
			ExternalUserID: input.ExternalID,
			Username:       input.Username,
			AccessToken:    input.AccessToken,
		}
		if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return nil, apperr.Conflict("SOCIAL_ACCOUNT_TAKEN", "This account is already linked")
			}
			return nil, err
		}
	default:
		return nil, err
	}
	return &record, nil
}

// UnlinkAccount removes the stored identity for one provider.
func (s *VerificationService) UnlinkAccount(ctx context.Context, userID string, provider models.SocialProvider) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.UserSocialAccount{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("SOCIAL_ACCOUNT_NOT_LINKED", "No "+string(provider)+" account linked")
	}
	return nil
}

// ListLinkedAccounts returns the user's linked providers. Tokens never
// serialize; the model hides them.
func (s *VerificationService) ListLinkedAccounts(ctx context.Context, userID string) ([]models.UserSocialAccount, error) {
	var accounts []models.UserSocialAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("provider ASC").Find(&accounts).Error
	return accounts, err
}

func providerForTaskType(taskType models.TaskType) (models.SocialProvider, bool) {
	switch taskType {
	case models.TaskTelegramJoin:
		return models.ProviderTelegram, true
	case models.TaskDiscordJoin:
		return models.ProviderDiscord, true
	case models.TaskTwitterFollow, models.TaskTwitterLike, models.TaskTwitterRetweet:
		return models.ProviderTwitter, true
	}
	return "", false
}
