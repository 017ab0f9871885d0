package services

import (
	"context"

	"gorm.io/gorm"

	"tasmil/server/internal/models"
	"tasmil/shared/logger"
)

// NotificationsService stores announcements. A nil user id on create is a
// broadcast every user sees alongside their own.
type NotificationsService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationsService(db *gorm.DB, appLogger *logger.Logger) *NotificationsService {
	return &NotificationsService{db: db, log: appLogger}
}

func (s *NotificationsService) Create(ctx context.Context, userID *string, title, body string) (*models.Notification, error) {
	notification := models.Notification{UserID: userID, Title: title, Body: body}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

// ListForUser returns the user's notifications plus broadcasts, newest first.
func (s *NotificationsService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ? OR user_id IS NULL", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// NotifyClaim records a per-user entry after a successful claim. Failures
// are logged, never surfaced; the claim already committed.
func (s *NotificationsService) NotifyClaim(ctx context.Context, userID, title, body string) {
	if _, err := s.Create(ctx, &userID, title, body); err != nil {
		s.log.Warn("Failed to record claim notification", "user", userID, "error", err)
	}
}
