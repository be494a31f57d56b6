package domain

import "time"

// Reward kinds
const (
	RewardSurvey = "survey"
	RewardVideo  = "video"
)

// RewardClaim records that a user has been rewarded for a subject.
// The unique index makes a second claim for the same (user, kind, subject) impossible.
type RewardClaim struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"uniqueIndex:idx_reward_claim;not null"`
	Kind          string `gorm:"size:16;uniqueIndex:idx_reward_claim;not null"`
	SubjectKey    string `gorm:"size:64;uniqueIndex:idx_reward_claim;not null"`
	TransactionID uint   // Reward transaction that paid the claim
	CreatedAt     time.Time
}

// ActivityWindow describes one daily-limited activity for a user
type ActivityWindow struct {
	CurrentCount int       `json:"currentCount"`
	TotalCount   int       `json:"totalCount"`
	Limit        int       `json:"limit"`
	ResetsAt     time.Time `json:"resetsAt"`
}

// ActivityLimits is the survey and video allowance of a user
type ActivityLimits struct {
	Survey ActivityWindow `json:"survey"`
	Video  ActivityWindow `json:"video"`
}
