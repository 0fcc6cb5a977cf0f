package model

import (
	"encoding/json"
	"time"
)

// GroupUnlockTest gates entry into a group when the group's unlock
// condition names it. Pass percentage defaults to 100 but is configurable.
// swagger:model GroupUnlockTest
type GroupUnlockTest struct {
	BaseModel
	GroupID          uint   `gorm:"uniqueIndex;not null" json:"groupId"`
	Title            string `gorm:"size:100" json:"title"`
	PassPercentage   int    `gorm:"default:100" json:"passPercentage"`
	TimeLimitSeconds int    `gorm:"default:600" json:"timeLimitSeconds"`
	XPReward         int    `gorm:"default:0" json:"xpReward"`
}

func (GroupUnlockTest) TableName() string {
	return "group_unlock_tests"
}

// UnlockTestQuestion belongs to exactly one unlock test.
// swagger:model UnlockTestQuestion
type UnlockTestQuestion struct {
	BaseModel
	TestID           uint            `gorm:"index:idx_test_order,unique;not null" json:"testId"`
	QuestionOrder    int             `gorm:"index:idx_test_order,unique;not null" json:"questionOrder"`
	QuestionType     QuestionType    `gorm:"size:30;not null" json:"questionType"`
	Prompt           string          `gorm:"type:text;not null" json:"prompt"`
	Options          json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer    json.RawMessage `gorm:"type:json;not null" json:"-"`
	XPValue          int             `gorm:"default:1" json:"xpValue"`
	TimeLimitSeconds int             `gorm:"default:30" json:"timeLimitSeconds"`
}

func (UnlockTestQuestion) TableName() string {
	return "unlock_test_questions"
}

// TestAttempt records one submission of a group unlock test.
// swagger:model TestAttempt
type TestAttempt struct {
	BaseModel
	UserID           uint            `gorm:"index:idx_user_test;not null" json:"userId"`
	TestID           uint            `gorm:"index:idx_user_test;not null" json:"testId"`
	Score            int             `gorm:"default:0" json:"score"`
	Total            int             `gorm:"default:0" json:"total"`
	Percentage       float64         `gorm:"default:0" json:"percentage"`
	Passed           bool            `gorm:"default:false" json:"passed"`
	TimeTakenSeconds int             `gorm:"default:0" json:"timeTakenSeconds"`
	Answers          json.RawMessage `gorm:"type:json" json:"answers,omitempty"`
	XPEarned         int             `gorm:"default:0" json:"xpEarned"`
	StartedAt        time.Time       `json:"startedAt"`
	SubmittedAt      time.Time       `json:"submittedAt"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}
