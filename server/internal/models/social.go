package models

import "time"

type SocialProvider string

const (
	ProviderTelegram SocialProvider = "telegram"
	ProviderDiscord  SocialProvider = "discord"
	ProviderTwitter  SocialProvider = "twitter"
)

// UserSocialAccount holds the OAuth identity a verifier checks against,
// one per (user, provider).
type UserSocialAccount struct {
	ID             string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID         string         `gorm:"type:uuid;not null;uniqueIndex:uq_social_account_user_provider,priority:1" json:"userId"`
	Provider       SocialProvider `gorm:"size:20;not null;uniqueIndex:uq_social_account_user_provider,priority:2" json:"provider"`
	ExternalUserID string         `gorm:"size:100;not null" json:"externalUserId"`
	Username       string         `gorm:"size:100" json:"username"`
	AccessToken    string         `gorm:"not null" json:"-"`
	RefreshToken   *string        `json:"-"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Metadata       *string        `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Notification with a nil UserID is a broadcast visible to every user.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    *string   `gorm:"type:uuid;index" json:"userId,omitempty"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
