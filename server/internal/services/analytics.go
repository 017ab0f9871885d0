package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tasmil/server/internal/models"
	"tasmil/shared/cache"
	"tasmil/shared/config"
	"tasmil/shared/logger"
	"tasmil/shared/utils"
)

// AnalyticsService answers the leaderboard and platform-stat reads. Both
// come straight off indexed columns; results sit in redis briefly since
// rank order tolerates staleness.
type AnalyticsService struct {
	db    *gorm.DB
	cache *cache.Cache
	cfg   *config.Config
	log   *logger.Logger
}

func NewAnalyticsService(db *gorm.DB, cacheClient *cache.Cache, cfg *config.Config, appLogger *logger.Logger) *AnalyticsService {
	return &AnalyticsService{db: db, cache: cacheClient, cfg: cfg, log: appLogger}
}

// LeaderboardEntry is one leaderboard row.
type LeaderboardEntry struct {
	Rank        int        `json:"rank"`
	Username    string     `json:"username"`
	AvatarURL   *string    `json:"avatarUrl,omitempty"`
	Tier        utils.Tier `json:"tier"`
	TotalPoints int        `json:"totalPoints"`
}

// Leaderboard returns the top users by total points. Ties share point
// order; the secondary sort on created_at keeps pagination stable.
func (s *AnalyticsService) Leaderboard(ctx context.Context, page, limit int) ([]LeaderboardEntry, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	cacheKey := fmt.Sprintf("analytics:leaderboard:%d:%d", page, limit)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
		var entries []LeaderboardEntry
		if json.Unmarshal([]byte(cached), &entries) == nil {
			return entries, nil
		}
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Order("total_points DESC, created_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, user := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:        (page-1)*limit + i + 1,
			Username:    user.Username,
			AvatarURL:   user.AvatarURL,
			Tier:        user.Tier,
			TotalPoints: user.TotalPoints,
		})
	}

	if encoded, err := json.Marshal(entries); err == nil {
		ttl := time.Duration(s.cfg.Cache.TTLSeconds) * time.Second
		if err := s.cache.Set(ctx, cacheKey, string(encoded), ttl); err != nil {
			s.log.Warn("Failed to cache leaderboard", "error", err)
		}
	}
	return entries, nil
}

// StreakEntry is one login-streak leaderboard row.
type StreakEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	LoginStreak int    `json:"loginStreak"`
}

// StreakLeaderboard ranks users by their current login streak.
func (s *AnalyticsService) StreakLeaderboard(ctx context.Context, page, limit int) ([]StreakEntry, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Where("login_streak > 0").
		Order("login_streak DESC, last_login_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	entries := make([]StreakEntry, 0, len(users))
	for i, user := range users {
		entries = append(entries, StreakEntry{
			Rank:        (page-1)*limit + i + 1,
			Username:    user.Username,
			LoginStreak: user.LoginStreak,
		})
	}
	return entries, nil
}

// UserRank computes one user's leaderboard position.
func (s *AnalyticsService) UserRank(ctx context.Context, userID string) (int, error) {
	var rank int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) + 1 FROM users
		WHERE total_points > (SELECT total_points FROM users WHERE id = ?)`, userID).
		Scan(&rank).Error
	return int(rank), err
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalUsers          int64 `json:"totalUsers"`
	TotalCampaigns      int64 `json:"totalCampaigns"`
	ActiveCampaigns     int64 `json:"activeCampaigns"`
	TotalTaskClaims     int64 `json:"totalTaskClaims"`
	TotalCampaignClaims int64 `json:"totalCampaignClaims"`
	PointsDistributed   int64 `json:"pointsDistributed"`
}

func (s *AnalyticsService) Stats(ctx context.Context) (*PlatformStats, error) {
	const cacheKey = "analytics:stats"
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
		var stats PlatformStats
		if json.Unmarshal([]byte(cached), &stats) == nil {
			return &stats, nil
		}
	}

	var stats PlatformStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Campaign{}).Count(&stats.TotalCampaigns).Error; err != nil {
		return nil, err
	}
	err := db.Model(&models.Campaign{}).
		Where("(start_at IS NULL OR start_at <= now()) AND (end_at IS NULL OR end_at >= now())").
		Count(&stats.ActiveCampaigns).Error
	if err != nil {
		return nil, err
	}
	if err := db.Model(&models.TaskClaim{}).Count(&stats.TotalTaskClaims).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.CampaignClaim{}).Count(&stats.TotalCampaignClaims).Error; err != nil {
		return nil, err
	}
	err = db.Raw(`
		SELECT COALESCE((SELECT SUM(points_earned) FROM task_claims), 0)
		     + COALESCE((SELECT SUM(points_earned) FROM campaign_claims), 0)
		     + COALESCE((SELECT SUM(points_awarded) FROM referral_events), 0)`).
		Scan(&stats.PointsDistributed).Error
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(&stats); err == nil {
		ttl := time.Duration(s.cfg.Cache.TTLSeconds) * time.Second
		_ = s.cache.Set(ctx, cacheKey, string(encoded), ttl)
	}
	return &stats, nil
}
