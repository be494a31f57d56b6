package domain

import (
	"time" // Timestamps for activity windows

	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
)

// User roles
const (
	RoleUser  = "user"  // Regular account
	RoleAdmin = "admin" // Administrator
)

// User Model
type User struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`                                // Primary key
	Email                string          `gorm:"size:191;uniqueIndex;not null" json:"email"`          // Unique login email
	Name                 string          `gorm:"not null" json:"name"`                                // Display name
	Phone                string          `gorm:"size:32" json:"phone"`                                // Mobile money number
	Password             string          `gorm:"not null" json:"-"`                                   // Hashed password
	Role                 string          `gorm:"size:16;default:user" json:"role"`                    // Role: user or admin
	Active               bool            `gorm:"not null;default:true" json:"active"`                 // Disabled accounts cannot log in
	Level                int             `gorm:"not null;default:1" json:"level"`                     // Reward level
	Wallet               decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"wallet"` // Wallet balance, owned by the ledger
	SurveyCount          int             `gorm:"not null;default:0" json:"survey_count"`              // Surveys completed in the current window
	SurveyCountTotal     int             `gorm:"not null;default:0" json:"survey_count_total"`        // Surveys completed overall
	VideoCount           int             `gorm:"not null;default:0" json:"video_count"`               // Videos watched in the current window
	VideoCountTotal      int             `gorm:"not null;default:0" json:"video_count_total"`         // Videos watched overall
	LastSurveyCountReset time.Time       `json:"last_survey_count_reset"`                             // Start of the current survey window
	LastVideoCountReset  time.Time       `json:"last_video_count_reset"`                              // Start of the current video window
	LastLogin            *time.Time      `json:"last_login,omitempty"`                                // Last successful login
	CreatedAt            time.Time       `json:"created_at"`                                          // Creation time
	UpdatedAt            time.Time       `json:"updated_at"`                                          // Last update time
}
