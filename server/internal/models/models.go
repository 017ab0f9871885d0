package models

import (
	"encoding/json"
	"time"

	"tasmil/shared/utils"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents a wallet-authenticated quester. total_points is mutated
// only through the claims ledger; tier is derived from it.
type User struct {
	ID            string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username      string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	WalletAddress string     `gorm:"size:42;uniqueIndex;not null" json:"walletAddress"`
	Email         *string    `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	AvatarURL     *string    `json:"avatarUrl,omitempty"`
	Tier          utils.Tier `gorm:"size:20;default:bronze" json:"tier"`
	TotalPoints   int        `gorm:"not null;default:0" json:"totalPoints"`
	LoginStreak   int        `gorm:"not null;default:0" json:"loginStreak"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	ReferralCode  *string    `gorm:"size:50;uniqueIndex" json:"referralCode,omitempty"`
	ReferredByID  *string    `gorm:"type:uuid;column:referred_by" json:"referredById,omitempty"`
	Role          UserRole   `gorm:"size:20;default:user" json:"role"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

type CampaignCategory string

const (
	CategoryDeFi    CampaignCategory = "defi"
	CategoryGaming  CampaignCategory = "gaming"
	CategoryNFT     CampaignCategory = "nft"
	CategorySocial  CampaignCategory = "social"
	CategoryGeneral CampaignCategory = "general"
)

// Campaign owns an ordered set of Tasks. questers_count is a denormalized
// counter incremented under a row lock on join.
type Campaign struct {
	ID                 string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Title              string            `gorm:"size:255;not null" json:"title"`
	Description        *string           `json:"description,omitempty"`
	Category           *CampaignCategory `gorm:"size:30;index" json:"category,omitempty"`
	RewardPoints       int               `gorm:"not null" json:"rewardPoints"`
	MinTasksToComplete int               `gorm:"not null" json:"minTasksToComplete"`
	QuestersCount      int               `gorm:"not null;default:0" json:"questersCount"`
	StartAt            *time.Time        `json:"startAt,omitempty"`
	EndAt              *time.Time        `json:"endAt,omitempty"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"createdAt"`

	Tasks []Task `gorm:"constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// IsActive reports whether the campaign window covers now.
func (c *Campaign) IsActive(now time.Time) bool {
	if c.StartAt != nil && c.StartAt.After(now) {
		return false
	}
	if c.EndAt != nil && c.EndAt.Before(now) {
		return false
	}
	return true
}

type TaskType string

const (
	TaskTelegramJoin   TaskType = "telegram_join"
	TaskDiscordJoin    TaskType = "discord_join"
	TaskTwitterFollow  TaskType = "twitter_follow"
	TaskTwitterLike    TaskType = "twitter_like"
	TaskTwitterRetweet TaskType = "twitter_retweet"
	TaskWebsite        TaskType = "website"
	TaskOther          TaskType = "other"
)

// TaskConfig carries the provider parameters stored in the task's jsonb
// config column (group id, guild id, tweet id, target username).
type TaskConfig struct {
	GroupID  string `json:"groupId,omitempty"`
	GuildID  string `json:"guildId,omitempty"`
	ServerID string `json:"serverId,omitempty"`
	TweetID  string `json:"tweetId,omitempty"`
	Username string `json:"username,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// Task is one social action inside a campaign, immutable outside admin edits.
type Task struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID   string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_tasks_campaign_order,priority:1" json:"campaignId"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Description  *string   `json:"description,omitempty"`
	URLAction    *string   `gorm:"column:url_action" json:"urlAction,omitempty"`
	RewardPoints int       `gorm:"not null" json:"rewardPoints"`
	TaskType     TaskType  `gorm:"size:30" json:"taskType"`
	Config       string    `gorm:"type:jsonb;default:'{}'" json:"config"`
	TaskOrder    int       `gorm:"not null;default:0;uniqueIndex:idx_tasks_campaign_order,priority:2" json:"taskOrder"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// ParseConfig decodes the jsonb config column.
func (t *Task) ParseConfig() (TaskConfig, error) {
	var cfg TaskConfig
	if t.Config == "" {
		return cfg, nil
	}
	err := json.Unmarshal([]byte(t.Config), &cfg)
	return cfg, err
}
