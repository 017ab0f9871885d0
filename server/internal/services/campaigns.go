package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/cache"
	"tasmil/shared/config"
	"tasmil/shared/logger"
)

const campaignCachePrefix = "campaigns:"

// CampaignsService serves the read-mostly campaign/task definitions, the
// join flow, and admin CRUD. Listings go through a short-TTL redis
// read-through cache flushed on every write; the cache is never on the
// claim path.
type CampaignsService struct {
	db     *gorm.DB
	cache  *cache.Cache
	cfg    *config.Config
	claims *ClaimsService
	log    *logger.Logger
}

func NewCampaignsService(db *gorm.DB, cacheClient *cache.Cache, cfg *config.Config, claims *ClaimsService, appLogger *logger.Logger) *CampaignsService {
	return &CampaignsService{db: db, cache: cacheClient, cfg: cfg, claims: claims, log: appLogger}
}

// CampaignQuery filters campaign listings.
type CampaignQuery struct {
	Category string
	Active   *bool
	Search   string
	Page     int
	Limit    int
}

// CampaignPage is a paginated listing response.
type CampaignPage struct {
	Items []models.Campaign `json:"items"`
	Meta  struct {
		Total int64 `json:"total"`
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
	} `json:"meta"`
}

func (s *CampaignsService) List(ctx context.Context, query CampaignQuery) (*CampaignPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 || query.Limit > 100 {
		query.Limit = 20
	}

	cacheKey := s.listCacheKey(query)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
		var page CampaignPage
		if json.Unmarshal([]byte(cached), &page) == nil {
			return &page, nil
		}
	}

	qb := s.db.WithContext(ctx).Model(&models.Campaign{})
	if query.Category != "" {
		qb = qb.Where("category = ?", query.Category)
	}
	if query.Active != nil {
		if *query.Active {
			qb = qb.Where("(start_at IS NULL OR start_at <= now()) AND (end_at IS NULL OR end_at >= now())")
		} else {
			qb = qb.Where("(end_at IS NOT NULL AND end_at < now()) OR (start_at IS NOT NULL AND start_at > now())")
		}
	}
	if query.Search != "" {
		pattern := "%" + query.Search + "%"
		qb = qb.Where("(title ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}

	var page CampaignPage
	if err := qb.Count(&page.Meta.Total).Error; err != nil {
		return nil, err
	}
	err := qb.Order("created_at DESC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&page.Items).Error
	if err != nil {
		return nil, err
	}
	page.Meta.Page = query.Page
	page.Meta.Limit = query.Limit

	if encoded, err := json.Marshal(&page); err == nil {
		ttl := time.Duration(s.cfg.Cache.TTLSeconds) * time.Second
		if err := s.cache.Set(ctx, cacheKey, string(encoded), ttl); err != nil {
			s.log.Warn("Failed to cache campaign listing", "error", err)
		}
	}
	return &page, nil
}

// CampaignDetail is a campaign with its ordered tasks plus the caller's
// participation and progress when authenticated.
type CampaignDetail struct {
	Campaign      models.Campaign               `json:"campaign"`
	Participation *models.CampaignParticipation `json:"participation,omitempty"`
	UserTasks     []models.UserTask             `json:"userTasks,omitempty"`
}

func (s *CampaignsService) Get(ctx context.Context, campaignID, userID string) (*CampaignDetail, error) {
	cacheKey := ""
	if userID == "" {
		cacheKey = campaignCachePrefix + "detail:" + campaignID
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var detail CampaignDetail
			if json.Unmarshal([]byte(cached), &detail) == nil {
				return &detail, nil
			}
		}
	}

	var campaign models.Campaign
	err := s.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("task_order ASC") }).
		Where("id = ?", campaignID).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
		}
		return nil, err
	}

	detail := CampaignDetail{Campaign: campaign}
	if userID != "" {
		var participation models.CampaignParticipation
		err := s.db.WithContext(ctx).Where("user_id = ? AND campaign_id = ?", userID, campaignID).First(&participation).Error
		if err == nil {
			detail.Participation = &participation
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Where("user_id = ? AND campaign_id = ?", userID, campaignID).Find(&detail.UserTasks).Error; err != nil {
			return nil, err
		}
	} else if cacheKey != "" {
		if encoded, err := json.Marshal(&detail); err == nil {
			ttl := time.Duration(s.cfg.Cache.TTLSeconds) * time.Second
			_ = s.cache.Set(ctx, cacheKey, string(encoded), ttl)
		}
	}
	return &detail, nil
}

// Join adds the caller to an active campaign. The row lock on the campaign
// serializes concurrent joins so questers_count stays accurate; the unique
// participation constraint backstops ALREADY_JOINED under races.
func (s *CampaignsService) Join(ctx context.Context, campaignID, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", campaignID).
			First(&campaign).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
			}
			return err
		}
		if !campaign.IsActive(time.Now()) {
			return apperr.BadRequest("CAMPAIGN_NOT_ACTIVE", "Campaign is not active")
		}

		var existing models.CampaignParticipation
		err = tx.Where("user_id = ? AND campaign_id = ?", userID, campaignID).First(&existing).Error
		if err == nil {
			return apperr.Conflict("ALREADY_JOINED", "Already joined")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		participation := models.CampaignParticipation{UserID: userID, CampaignID: campaignID}
		if err := tx.Create(&participation).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("ALREADY_JOINED", "Already joined")
			}
			return err
		}
		return tx.Model(&models.Campaign{}).
			Where("id = ?", campaignID).
			UpdateColumn("questers_count", gorm.Expr("questers_count + ?", 1)).Error
	})
	if err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// TaskWithStatus decorates a task with the caller's progress.
type TaskWithStatus struct {
	models.Task
	UserStatus  string     `json:"userStatus"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// GetTasks lists a campaign's tasks in order, annotated with the caller's
// status when authenticated. approved/completed both surface as "completed".
func (s *CampaignsService) GetTasks(ctx context.Context, campaignID, userID string) ([]TaskWithStatus, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).Where("id = ?", campaignID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
		}
		return nil, err
	}

	var tasks []models.Task
	if err := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("task_order ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	statusMap := map[string]models.UserTask{}
	if userID != "" {
		var userTasks []models.UserTask
		if err := s.db.WithContext(ctx).Where("user_id = ? AND campaign_id = ?", userID, campaignID).Find(&userTasks).Error; err != nil {
			return nil, err
		}
		for _, ut := range userTasks {
			statusMap[ut.TaskID] = ut
		}
	}

	result := make([]TaskWithStatus, 0, len(tasks))
	for _, task := range tasks {
		item := TaskWithStatus{Task: task, UserStatus: string(models.StatusPending)}
		if ut, ok := statusMap[task.ID]; ok {
			item.UserStatus = PublicStatus(&ut)
			item.CompletedAt = ut.CompletedAt
		}
		result = append(result, item)
	}
	return result, nil
}

// ClaimCampaign gates the ledger call on the campaign being active.
func (s *CampaignsService) ClaimCampaign(ctx context.Context, userID, campaignID string) (*CampaignClaimResult, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).Where("id = ?", campaignID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
		}
		return nil, err
	}
	if !campaign.IsActive(time.Now()) {
		return nil, apperr.BadRequest("CAMPAIGN_NOT_ACTIVE", "Campaign is not active")
	}
	return s.claims.ClaimCampaign(ctx, userID, campaignID)
}

// CampaignInput is the admin create/update payload.
type CampaignInput struct {
	Title              string
	Description        *string
	Category           *models.CampaignCategory
	RewardPoints       int
	MinTasksToComplete int
	StartAt            *time.Time
	EndAt              *time.Time
}

func (s *CampaignsService) CreateCampaign(ctx context.Context, input CampaignInput) (*models.Campaign, error) {
	campaign := models.Campaign{
		Title:              input.Title,
		Description:        input.Description,
		Category:           input.Category,
		RewardPoints:       input.RewardPoints,
		MinTasksToComplete: input.MinTasksToComplete,
		StartAt:            input.StartAt,
		EndAt:              input.EndAt,
	}
	if err := s.db.WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return &campaign, nil
}

func (s *CampaignsService) UpdateCampaign(ctx context.Context, id string, input CampaignInput) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
		}
		return nil, err
	}
	if input.Title != "" {
		campaign.Title = input.Title
	}
	if input.Description != nil {
		campaign.Description = input.Description
	}
	if input.Category != nil {
		campaign.Category = input.Category
	}
	if input.RewardPoints > 0 {
		campaign.RewardPoints = input.RewardPoints
	}
	if input.MinTasksToComplete > 0 {
		campaign.MinTasksToComplete = input.MinTasksToComplete
	}
	if input.StartAt != nil {
		campaign.StartAt = input.StartAt
	}
	if input.EndAt != nil {
		campaign.EndAt = input.EndAt
	}
	if err := s.db.WithContext(ctx).Save(&campaign).Error; err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return &campaign, nil
}

func (s *CampaignsService) DeleteCampaign(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Campaign{}).Error; err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// TaskInput is the admin task create/update payload.
type TaskInput struct {
	Name         string
	Description  *string
	URLAction    *string
	RewardPoints int
	TaskType     models.TaskType
	Config       string
	TaskOrder    int
}

func (s *CampaignsService) AddTask(ctx context.Context, campaignID string, input TaskInput) (*models.Task, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).Where("id = ?", campaignID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("CAMPAIGN_NOT_FOUND", "Campaign not found")
		}
		return nil, err
	}
	cfg := input.Config
	if cfg == "" {
		cfg = "{}"
	}
	task := models.Task{
		CampaignID:   campaignID,
		Name:         input.Name,
		Description:  input.Description,
		URLAction:    input.URLAction,
		RewardPoints: input.RewardPoints,
		TaskType:     input.TaskType,
		Config:       cfg,
		TaskOrder:    input.TaskOrder,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("TASK_ORDER_TAKEN", "Task order already used in this campaign")
		}
		return nil, err
	}
	s.invalidateCache(ctx)
	return &task, nil
}

func (s *CampaignsService) UpdateTask(ctx context.Context, taskID string, input TaskInput) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("TASK_NOT_FOUND", "Task not found")
		}
		return nil, err
	}
	if input.Name != "" {
		task.Name = input.Name
	}
	if input.Description != nil {
		task.Description = input.Description
	}
	if input.URLAction != nil {
		task.URLAction = input.URLAction
	}
	if input.RewardPoints > 0 {
		task.RewardPoints = input.RewardPoints
	}
	if input.TaskType != "" {
		task.TaskType = input.TaskType
	}
	if input.Config != "" {
		task.Config = input.Config
	}
	if input.TaskOrder > 0 {
		task.TaskOrder = input.TaskOrder
	}
	if err := s.db.WithContext(ctx).Save(&task).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("TASK_ORDER_TAKEN", "Task order already used in this campaign")
		}
		return nil, err
	}
	s.invalidateCache(ctx)
	return &task, nil
}

func (s *CampaignsService) RemoveTask(ctx context.Context, taskID string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&models.Task{}).Error; err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *CampaignsService) invalidateCache(ctx context.Context) {
	if err := s.cache.FlushPrefix(ctx, campaignCachePrefix); err != nil {
		s.log.Warn("Failed to flush campaign cache", "error", err)
	}
}

func (s *CampaignsService) listCacheKey(query CampaignQuery) string {
	active := "any"
	if query.Active != nil {
		active = fmt.Sprintf("%t", *query.Active)
	}
	return fmt.Sprintf("%slist:%s:%s:%s:%d:%d",
		campaignCachePrefix, query.Category, active, query.Search, query.Page, query.Limit)
}

// PublicStatus collapses internal statuses for clients: approved and
// completed are both "completed".
func PublicStatus(userTask *models.UserTask) string {
	if userTask == nil {
		return string(models.StatusPending)
	}
	if userTask.Status.Payable() {
		return string(models.StatusCompleted)
	}
	return string(userTask.Status)
}
