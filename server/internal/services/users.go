package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/cache"
	"tasmil/shared/config"
	"tasmil/shared/logger"
	"tasmil/shared/utils"
)

// UsersService owns the account, tier and referral logic. total_points only
// ever moves through ApplyPointChange, inside the caller's transaction.
type UsersService struct {
	db    *gorm.DB
	cache *cache.Cache
	cfg   *config.Config
	log   *logger.Logger
}

func NewUsersService(db *gorm.DB, cacheClient *cache.Cache, cfg *config.Config, appLogger *logger.Logger) *UsersService {
	return &UsersService{db: db, cache: cacheClient, cfg: cfg, log: appLogger}
}

// EnsureWalletUser returns the user for a wallet address, creating the
// account on first login. The referral link is resolved once, at creation.
func (s *UsersService) EnsureWalletUser(ctx context.Context, walletAddress, referralCode string) (*models.User, error) {
	wallet := strings.ToLower(walletAddress)

	var user models.User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username, err := s.generateUsername(ctx, wallet)
	if err != nil {
		return nil, err
	}
	code, err := s.generateReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	var referredByID *string
	if referralCode != "" {
		var refUser models.User
		if err := s.db.WithContext(ctx).Where("referral_code = ?", referralCode).First(&refUser).Error; err == nil {
			referredByID = &refUser.ID
		}
	}

	user = models.User{
		WalletAddress: wallet,
		Username:      username,
		ReferralCode:  &code,
		ReferredByID:  referredByID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	s.log.Info("Created wallet user", "userId", user.ID, "wallet", wallet)
	return &user, nil
}

// HandleLoginSuccess updates the login streak. Calendar comparison is UTC
// based and ignores time-of-day: a last login on UTC yesterday extends the
// streak, anything older (or none) resets it to 1.
func (s *UsersService) HandleLoginSuccess(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		now := time.Now()
		if utils.IsYesterdayUTC(user.LastLoginAt, now) {
			user.LoginStreak++
		} else {
			user.LoginStreak = 1
		}
		user.LastLoginAt = &now
		return tx.Save(&user).Error
	})
}

func (s *UsersService) GetMe(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("USER_NOT_FOUND", "User not found")
		}
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfileInput carries the optional profile fields. A non-nil empty
// Email clears the address.
type UpdateProfileInput struct {
	Username  string
	AvatarURL string
	Email     *string
}

func (s *UsersService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	user, err := s.GetMe(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Username != "" && input.Username != user.Username {
		var existing models.User
		err := s.db.WithContext(ctx).Where("username = ?", input.Username).First(&existing).Error
		if err == nil {
			return nil, apperr.Conflict("USERNAME_TAKEN", "Username already taken")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user.Username = input.Username
	}
	if input.AvatarURL != "" {
		user.AvatarURL = &input.AvatarURL
	}
	if input.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*input.Email))
		if normalized == "" {
			user.Email = nil
		} else if user.Email == nil || *user.Email != normalized {
			var existing models.User
			err := s.db.WithContext(ctx).Where("email = ?", normalized).First(&existing).Error
			if err == nil && existing.ID != user.ID {
				return nil, apperr.Conflict("EMAIL_TAKEN", "Email already in use")
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			user.Email = &normalized
		}
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("USERNAME_TAKEN", "Username or email already taken")
		}
		return nil, err
	}
	return user, nil
}

// GetPublicProfile returns the user without the email address.
func (s *UsersService) GetPublicProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.GetMe(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Email = nil
	return user, nil
}

// PointsHistoryItem is one row of the merged claim/referral ledger view.
type PointsHistoryItem struct {
	ID         string    `json:"id"`
	Points     int       `json:"points"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	TaskID     *string   `json:"taskId,omitempty"`
	CampaignID *string   `json:"campaignId,omitempty"`
}

// GetPointsHistory merges task claims, campaign claims and referral payouts
// into one reverse-chronological page.
func (s *UsersService) GetPointsHistory(ctx context.Context, userID string, page, limit int) ([]PointsHistoryItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int64
	countSQL := `SELECT COUNT(*) FROM (
		SELECT id FROM task_claims WHERE user_id = ?
		UNION ALL
		SELECT id FROM campaign_claims WHERE user_id = ?
		UNION ALL
		SELECT id FROM referral_events WHERE user_id = ?
	) q`
	if err := s.db.WithContext(ctx).Raw(countSQL, userID, userID, userID).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []PointsHistoryItem
	rowsSQL := `
		SELECT id, points_earned AS points, 'task' AS type, claimed_at AS occurred_at, task_id, campaign_id
		  FROM task_claims WHERE user_id = ?
		UNION ALL
		SELECT id, points_earned AS points, 'campaign' AS type, claimed_at AS occurred_at, NULL AS task_id, campaign_id
		  FROM campaign_claims WHERE user_id = ?
		UNION ALL
		SELECT id, points_awarded AS points, 'referral' AS type, created_at AS occurred_at, NULL AS task_id, NULL AS campaign_id
		  FROM referral_events WHERE user_id = ?
		ORDER BY occurred_at DESC
		LIMIT ? OFFSET ?`
	if err := s.db.WithContext(ctx).Raw(rowsSQL, userID, userID, userID, limit, offset).Scan(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ReferralSummary is one referred user plus what the referrer earned from
// them.
type ReferralSummary struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	TotalPoints  int        `json:"totalPoints"`
	Tier         utils.Tier `json:"tier"`
	EarnedPoints int        `json:"earnedPoints"`
}

func (s *UsersService) GetReferrals(ctx context.Context, userID string) ([]ReferralSummary, error) {
	var referrals []models.User
	if err := s.db.WithContext(ctx).Where("referred_by = ?", userID).Find(&referrals).Error; err != nil {
		return nil, err
	}

	type earningRow struct {
		ReferredUserID string
		Points         int
	}
	var earnings []earningRow
	err := s.db.WithContext(ctx).Model(&models.ReferralEvent{}).
		Select("referred_user_id, SUM(points_awarded) AS points").
		Where("user_id = ?", userID).
		Group("referred_user_id").
		Scan(&earnings).Error
	if err != nil {
		return nil, err
	}
	earned := make(map[string]int, len(earnings))
	for _, row := range earnings {
		earned[row.ReferredUserID] = row.Points
	}

	summaries := make([]ReferralSummary, 0, len(referrals))
	for _, ref := range referrals {
		summaries = append(summaries, ReferralSummary{
			ID:           ref.ID,
			Username:     ref.Username,
			TotalPoints:  ref.TotalPoints,
			Tier:         ref.Tier,
			EarnedPoints: earned[ref.ID],
		})
	}
	return summaries, nil
}

// DailyLoginReward pays a small fixed bonus at most once per 24h, fenced by
// a redis key so a double tap cannot double pay.
func (s *UsersService) DailyLoginReward(ctx context.Context, userID string) (int, error) {
	key := fmt.Sprintf("daily_login:%s", userID)
	ok, err := s.cache.SetNX(ctx, key, "1", 24*time.Hour)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperr.Conflict("ALREADY_CLAIMED", "Daily reward already claimed today")
	}
	reward := s.cfg.Auth.DailyLoginReward
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ApplyPointChange(tx, userID, reward)
	})
	if err != nil {
		// Roll the fence back so the user is not locked out of a reward
		// that was never paid.
		_ = s.cache.Delete(ctx, key)
		return 0, err
	}
	return reward, nil
}

// ApplyPointChange credits delta points atomically (a single SQL increment,
// never read-modify-write) and recomputes the tier inside the same
// transaction, so no reader can observe a balance/tier mismatch.
func (s *UsersService) ApplyPointChange(tx *gorm.DB, userID string, delta int) error {
	err := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", delta)).Error
	if err != nil {
		return err
	}
	return s.syncTier(tx, userID)
}

// syncTier persists the derived tier only when it actually changed.
func (s *UsersService) syncTier(tx *gorm.DB, userID string) error {
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	tier := utils.ResolveTierByPoints(user.TotalPoints)
	if tier == user.Tier {
		return nil
	}
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("tier", tier).Error
}

// HandleReferralReward pays the referred user's referrer exactly once, no
// matter how many of the referred user's tasks get approved. The cheap
// pre-checks run outside the transaction; the transaction re-checks and the
// unique index on referred_user_id backstops any race left over.
func (s *UsersService) HandleReferralReward(ctx context.Context, referredUserID, userTaskID string) error {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", referredUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.ReferredByID == nil {
		return nil
	}

	var existing models.ReferralEvent
	err := s.db.WithContext(ctx).Where("referred_user_id = ?", referredUserID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	points := s.cfg.Auth.ReferralRewardPoints
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.ReferralEvent
		err := tx.Where("referred_user_id = ?", referredUserID).First(&event).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := s.ApplyPointChange(tx, *user.ReferredByID, points); err != nil {
			return err
		}
		record := models.ReferralEvent{
			UserID:         *user.ReferredByID,
			ReferredUserID: referredUserID,
			PointsAwarded:  points,
			UserTaskID:     &userTaskID,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				// Lost the race to a concurrent approval; the bonus is
				// already paid, which is exactly the guarantee we want.
				return nil
			}
			return err
		}
		s.log.Info("Referral bonus paid", "referrer", *user.ReferredByID, "referredUser", referredUserID, "points", points)
		return nil
	})
}

// generateUsername derives user_<last6> from the wallet, suffixing on
// collision.
func (s *UsersService) generateUsername(ctx context.Context, walletAddress string) (string, error) {
	base := fmt.Sprintf("user_%s", walletAddress[len(walletAddress)-6:])
	candidate := base
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			candidate = fmt.Sprintf("%s_%d", base, attempt)
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
}

func (s *UsersService) generateReferralCode(ctx context.Context) (string, error) {
	for {
		code := strings.Split(uuid.NewString(), "-")[0]
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
}
