package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

// ClaimsService is the rewards ledger. Every mutating operation runs inside
// a single transaction; the unique constraints on task_claims,
// campaign_claims and referral_events are the at-most-once contract, with
// row locks serializing the common case and unique-violation translation
// covering races the locks cannot see.
type ClaimsService struct {
	db    *gorm.DB
	users *UsersService
	log   *logger.Logger
}

func NewClaimsService(db *gorm.DB, users *UsersService, appLogger *logger.Logger) *ClaimsService {
	return &ClaimsService{db: db, users: users, log: appLogger}
}

// CampaignClaimResult is the breakdown returned by ClaimCampaign.
type CampaignClaimResult struct {
	CampaignReward  int       `json:"campaignReward"`
	TaskRewardTotal int       `json:"taskRewardTotal"`
	Total           int       `json:"total"`
	ClaimedAt       time.Time `json:"claimedAt"`
}

// ClaimTask converts a payable user task into a TaskClaim and credits the
// user, exactly once per (user, task). The SELECT ... FOR UPDATE on the
// progress row serializes concurrent claims for the same pair; the insert's
// unique constraint is still treated as the authoritative signal.
func (s *ClaimsService) ClaimTask(ctx context.Context, userID, taskID string) (*models.TaskClaim, error) {
	var claim *models.TaskClaim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userTask models.UserTask
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND task_id = ?", userID, taskID).
			First(&userTask).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.BadRequest("TASK_NOT_APPROVED", "Task not approved")
			}
			return err
		}
		if !userTask.Status.Payable() {
			return apperr.BadRequest("TASK_NOT_APPROVED", "Task not approved")
		}

		var task models.Task
		if err := tx.Where("id = ?", taskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("TASK_NOT_FOUND", "Task not found")
			}
			return err
		}

		// Fallback for rows created outside the normal flow: approval
		// freezes points_earned, but a zero value defers to the task's
		// configured reward.
		points := userTask.PointsEarned
		if points == 0 {
			points = task.RewardPoints
		}

		record := models.TaskClaim{
			UserID:       userID,
			CampaignID:   userTask.CampaignID,
			TaskID:       taskID,
			PointsEarned: points,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("ALREADY_CLAIMED", "Task already claimed")
			}
			return err
		}

		if userTask.PointsEarned == 0 {
			err := tx.Model(&models.UserTask{}).
				Where("id = ?", userTask.ID).
				UpdateColumn("points_earned", points).Error
			if err != nil {
				return err
			}
		}

		if err := s.users.ApplyPointChange(tx, userID, points); err != nil {
			return err
		}
		claim = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Task claim paid", "userId", userID, "taskId", taskID, "points", claim.PointsEarned)
	return claim, nil
}

// ClaimCampaign pays the campaign bonus plus the sum of the per-task
// rewards, once per (user, campaign). Eligibility requires EVERY task in the
// campaign to be payable; min_tasks_to_complete gates campaign visibility
// elsewhere, not claiming.
func (s *ClaimsService) ClaimCampaign(ctx context.Context, userID, campaignID string) (*CampaignClaimResult, error) {
	var result *CampaignClaimResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.Where("id = ?", campaignID).First(&campaign).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
			}
			return err
		}

		var tasks []models.Task
		if err := tx.Where("campaign_id = ?", campaignID).Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return apperr.BadRequest("CAMPAIGN_HAS_NO_TASKS", "Campaign has no tasks")
		}

		var userTasks []models.UserTask
		err := tx.Where("user_id = ? AND campaign_id = ? AND status IN ?",
			userID, campaignID,
			[]models.UserTaskStatus{models.StatusApproved, models.StatusCompleted}).
			Find(&userTasks).Error
		if err != nil {
			return err
		}
		payable := make(map[string]models.UserTask, len(userTasks))
		for _, ut := range userTasks {
			payable[ut.TaskID] = ut
		}

		taskRewardTotal := 0
		for _, task := range tasks {
			ut, ok := payable[task.ID]
			if !ok {
				return apperr.BadRequest("CAMPAIGN_TASKS_INCOMPLETE", "Not all campaign tasks are completed")
			}
			if ut.PointsEarned > 0 {
				taskRewardTotal += ut.PointsEarned
			} else {
				taskRewardTotal += task.RewardPoints
			}
		}

		var existing models.CampaignClaim
		err = tx.Where("user_id = ? AND campaign_id = ?", userID, campaignID).First(&existing).Error
		if err == nil {
			return apperr.Conflict("ALREADY_CLAIMED", "Campaign already claimed")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		total := campaign.RewardPoints + taskRewardTotal
		record := models.CampaignClaim{
			UserID:       userID,
			CampaignID:   campaignID,
			PointsEarned: total,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("ALREADY_CLAIMED", "Campaign already claimed")
			}
			return err
		}

		if err := s.users.ApplyPointChange(tx, userID, total); err != nil {
			return err
		}
		result = &CampaignClaimResult{
			CampaignReward:  campaign.RewardPoints,
			TaskRewardTotal: taskRewardTotal,
			Total:           total,
			ClaimedAt:       record.ClaimedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Campaign claim paid", "userId", userID, "campaignId", campaignID, "total", result.Total)
	return result, nil
}

// GetTaskClaim returns the claim for a (user, task) pair, or nil.
func (s *ClaimsService) GetTaskClaim(ctx context.Context, userID, taskID string) (*models.TaskClaim, error) {
	var claim models.TaskClaim
	err := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, taskID).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// GetCampaignClaims lists every claim recorded against a campaign.
func (s *ClaimsService) GetCampaignClaims(ctx context.Context, campaignID string) ([]models.CampaignClaim, error) {
	var claims []models.CampaignClaim
	err := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Find(&claims).Error
	return claims, err
}
