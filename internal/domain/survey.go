package domain

import (
	"time"

	"gorm.io/datatypes" // JSON column types
)

// Question types
const (
	QuestionText           = "text"
	QuestionMultipleChoice = "multiple-choice"
	QuestionSingleChoice   = "single-choice"
)

// Survey Model
type Survey struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Questions   []Question `gorm:"constraint:OnDelete:CASCADE;" json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Question Model
type Question struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	SurveyID uint           `gorm:"index;not null" json:"survey_id"`
	Text     string         `gorm:"not null" json:"text"`
	Type     string         `gorm:"size:32;default:text" json:"type"`
	Options  datatypes.JSON `json:"options,omitempty"` // Choices for multiple/single choice questions
}

// Response Model, one submission of a survey by a user
type Response struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SurveyID    uint      `gorm:"index;not null" json:"survey_id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Answers     []Answer  `gorm:"constraint:OnDelete:CASCADE;" json:"answers"`
	SubmittedAt time.Time `gorm:"autoCreateTime" json:"submitted_at"`
}

// Answer Model
type Answer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ResponseID uint           `gorm:"index;not null" json:"response_id"`
	QuestionID uint           `gorm:"not null" json:"question_id"`
	Value      datatypes.JSON `json:"answer"`
}
