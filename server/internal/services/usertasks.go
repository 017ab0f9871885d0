package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

const maxProofLength = 5000

// UserTasksService is the per-(user, task) progress tracker:
// pending (virtual) -> submitted -> approved/rejected, with completed
// reachable directly through automated verification.
type UserTasksService struct {
	db    *gorm.DB
	users *UsersService
	log   *logger.Logger
}

func NewUserTasksService(db *gorm.DB, users *UsersService, appLogger *logger.Logger) *UserTasksService {
	return &UserTasksService{db: db, users: users, log: appLogger}
}

// SubmitProof stores user-provided evidence and moves the pair to submitted.
// Resubmitting over an existing submission replaces the proof.
func (s *UserTasksService) SubmitProof(ctx context.Context, userID, taskID, proofData string) (*models.UserTask, error) {
	if len(proofData) > maxProofLength {
		return nil, apperr.BadRequest("PROOF_TOO_LARGE", "Proof data too large")
	}

	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("TASK_NOT_FOUND", "Task not found")
		}
		return nil, err
	}

	var userTask models.UserTask
	err := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, taskID).First(&userTask).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userTask = models.UserTask{
			UserID:     userID,
			CampaignID: task.CampaignID,
			TaskID:     taskID,
			Status:     models.StatusSubmitted,
			ProofData:  &proofData,
		}
		if err := s.db.WithContext(ctx).Create(&userTask).Error; err != nil {
			return nil, err
		}
		return &userTask, nil
	}
	if err != nil {
		return nil, err
	}

	userTask.ProofData = &proofData
	userTask.Status = models.StatusSubmitted
	if err := s.db.WithContext(ctx).Save(&userTask).Error; err != nil {
		return nil, err
	}
	return &userTask, nil
}

// MarkCompleted records a verifier-confirmed completion. First write wins on
// points_earned: once frozen it is not overwritten.
func (s *UserTasksService) MarkCompleted(ctx context.Context, userID string, task *models.Task, proof map[string]interface{}) (*models.UserTask, error) {
	var userTask models.UserTask
	err := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, task.ID).First(&userTask).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userTask = models.UserTask{
			UserID:     userID,
			CampaignID: task.CampaignID,
			TaskID:     task.ID,
		}
	}

	now := time.Now()
	userTask.Status = models.StatusCompleted
	userTask.CompletedAt = &now
	if userTask.PointsEarned == 0 {
		userTask.PointsEarned = task.RewardPoints
	}
	if proof != nil {
		encoded, err := json.Marshal(proof)
		if err == nil {
			text := string(encoded)
			userTask.ProofData = &text
		}
	}
	if err := s.db.WithContext(ctx).Save(&userTask).Error; err != nil {
		if isUniqueViolation(err) {
			// A concurrent verification created the row first; reload and
			// leave its frozen values alone.
			reloadErr := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, task.ID).First(&userTask).Error
			if reloadErr != nil {
				return nil, reloadErr
			}
			return &userTask, nil
		}
		return nil, err
	}
	return &userTask, nil
}

// Approve moves a submission to approved, freezes the points and fires the
// one-shot referral check. Admin only.
func (s *UserTasksService) Approve(ctx context.Context, userTaskID string) (*models.UserTask, error) {
	var userTask models.UserTask
	if err := s.db.WithContext(ctx).Where("id = ?", userTaskID).First(&userTask).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("USER_TASK_NOT_FOUND", "User task not found")
		}
		return nil, err
	}

	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", userTask.TaskID).First(&task).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	userTask.Status = models.StatusApproved
	userTask.CompletedAt = &now
	if userTask.PointsEarned == 0 && task.RewardPoints > 0 {
		userTask.PointsEarned = task.RewardPoints
	}
	if err := s.db.WithContext(ctx).Save(&userTask).Error; err != nil {
		return nil, err
	}

	if err := s.users.HandleReferralReward(ctx, userTask.UserID, userTask.ID); err != nil {
		// The approval stands; the referral payout is retried on the next
		// approval for the same user.
		s.log.Error("Referral reward failed after approval", "userTaskId", userTask.ID, "error", err)
	}
	return &userTask, nil
}

// Reject is terminal: there is no resubmission path out of rejected.
func (s *UserTasksService) Reject(ctx context.Context, userTaskID string) (*models.UserTask, error) {
	var userTask models.UserTask
	if err := s.db.WithContext(ctx).Where("id = ?", userTaskID).First(&userTask).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("USER_TASK_NOT_FOUND", "User task not found")
		}
		return nil, err
	}
	userTask.Status = models.StatusRejected
	if err := s.db.WithContext(ctx).Save(&userTask).Error; err != nil {
		return nil, err
	}
	return &userTask, nil
}

// GetStatus returns the progress row, or nil for the virtual pending state.
func (s *UserTasksService) GetStatus(ctx context.Context, userID, taskID string) (*models.UserTask, error) {
	var userTask models.UserTask
	err := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, taskID).First(&userTask).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &userTask, nil
}

// ListSubmitted returns submissions awaiting review, oldest first.
func (s *UserTasksService) ListSubmitted(ctx context.Context, limit int) ([]models.UserTask, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var rows []models.UserTask
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusSubmitted).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
