package models

import "time"

type UserTaskStatus string

const (
	// StatusPending is virtual: a (user, task) pair with no row is pending.
	StatusPending   UserTaskStatus = "pending"
	StatusSubmitted UserTaskStatus = "submitted"
	StatusCompleted UserTaskStatus = "completed"
	StatusApproved  UserTaskStatus = "approved"
	StatusRejected  UserTaskStatus = "rejected"
)

// Payable reports whether the status allows claiming the task reward.
// approved (manual review) and completed (automated verification) count the
// same downstream.
func (s UserTaskStatus) Payable() bool {
	return s == StatusApproved || s == StatusCompleted
}

// UserTask is the per-(user, task) progress record. points_earned is frozen
// at approval/completion time; once non-zero it is never overwritten.
type UserTask struct {
	ID          string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index;uniqueIndex:uq_user_task_user_task,priority:1" json:"userId"`
	CampaignID  string         `gorm:"type:uuid;not null;index" json:"campaignId"`
	TaskID      string         `gorm:"type:uuid;not null;index;uniqueIndex:uq_user_task_user_task,priority:2" json:"taskId"`
	Status      UserTaskStatus `gorm:"size:20;default:pending" json:"status"`
	ProofData   *string        `json:"proofData,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	PointsEarned int           `gorm:"not null;default:0" json:"pointsEarned"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// TaskClaim's unique (user_id, task_id) pair is the at-most-once payment
// contract for task rewards: the row's presence means "already paid".
type TaskClaim struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;index;uniqueIndex:uq_task_claim_user_task,priority:1" json:"userId"`
	CampaignID   string    `gorm:"type:uuid;not null;index" json:"campaignId"`
	TaskID       string    `gorm:"type:uuid;not null;index;uniqueIndex:uq_task_claim_user_task,priority:2" json:"taskId"`
	PointsEarned int       `gorm:"not null" json:"pointsEarned"`
	ClaimedAt    time.Time `gorm:"autoCreateTime" json:"claimedAt"`
}

// CampaignClaim records the one-time campaign completion bonus.
type CampaignClaim struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;index;uniqueIndex:uq_campaign_claim_user_campaign,priority:1" json:"userId"`
	CampaignID   string    `gorm:"type:uuid;not null;index;uniqueIndex:uq_campaign_claim_user_campaign,priority:2" json:"campaignId"`
	PointsEarned int       `gorm:"not null" json:"pointsEarned"`
	ClaimedAt    time.Time `gorm:"autoCreateTime" json:"claimedAt"`
}

// ReferralEvent pays the referrer exactly once per referred user, whichever
// of the referred user's tasks got approved first.
type ReferralEvent struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"userId"`
	ReferredUserID string    `gorm:"type:uuid;not null;uniqueIndex" json:"referredUserId"`
	PointsAwarded  int       `gorm:"not null" json:"pointsAwarded"`
	UserTaskID     *string   `gorm:"type:uuid" json:"userTaskId,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// CampaignParticipation tracks joins behind the questers_count counter.
type CampaignParticipation struct {
	ID         string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:uq_campaign_participation_user_campaign,priority:1" json:"userId"`
	CampaignID string    `gorm:"type:uuid;not null;uniqueIndex:uq_campaign_participation_user_campaign,priority:2" json:"campaignId"`
	JoinedAt   time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (CampaignParticipation) TableName() string {
	return "campaign_participation"
}
