package model

import "time"

// LevelProgress is the per (user, level) record. is_completed flips on the
// first passing completion and stays set; XPEarned is credited exactly once
// at that moment.
// swagger:model LevelProgress
type LevelProgress struct {
	BaseModel
	UserID               uint       `gorm:"index:idx_user_level,unique;not null" json:"userId"`
	LevelID              uint       `gorm:"index:idx_user_level,unique;not null" json:"levelId"`
	IsCompleted          bool       `gorm:"default:false" json:"isCompleted"`
	CompletionPercentage float64    `gorm:"default:0" json:"completionPercentage"`
	QuestionsAnswered    int        `gorm:"default:0" json:"questionsAnswered"`
	CorrectAnswers       int        `gorm:"default:0" json:"correctAnswers"`
	XPEarned             int        `gorm:"default:0" json:"xpEarned"`
	TimeSpentSeconds     int        `gorm:"default:0" json:"timeSpentSeconds"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}

func (LevelProgress) TableName() string {
	return "level_progress"
}

// GroupProgress is the per (user, group) rollup. A group counts as
// completed at >= 80% of its levels; completion auto-unlocks the next
// group subject to that group's own unlock condition.
// swagger:model GroupProgress
type GroupProgress struct {
	BaseModel
	UserID               uint       `gorm:"index:idx_user_group,unique;not null" json:"userId"`
	GroupID              uint       `gorm:"index:idx_user_group,unique;not null" json:"groupId"`
	GroupNumber          int        `gorm:"index;not null" json:"groupNumber"`
	IsUnlocked           bool       `gorm:"default:false" json:"isUnlocked"`
	IsCompleted          bool       `gorm:"default:false" json:"isCompleted"`
	LevelsCompleted      int        `gorm:"default:0" json:"levelsCompleted"`
	CompletionPercentage float64    `gorm:"default:0" json:"completionPercentage"`
	TotalXPEarned        int        `gorm:"default:0" json:"totalXpEarned"`
	UnlockedAt           *time.Time `json:"unlockedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}

func (GroupProgress) TableName() string {
	return "group_progress"
}

// DailyProgress has at most one row per (user, local date).
// swagger:model DailyProgress
type DailyProgress struct {
	BaseModel
	UserID            uint   `gorm:"index:idx_user_date,unique;not null" json:"userId"`
	Date              string `gorm:"size:10;index:idx_user_date,unique;not null" json:"date"` // user-local, DateLayout
	LevelsCompleted   int    `gorm:"default:0" json:"levelsCompleted"`
	QuestionsAnswered int    `gorm:"default:0" json:"questionsAnswered"`
	CorrectAnswers    int    `gorm:"default:0" json:"correctAnswers"`
	XPEarned          int    `gorm:"default:0" json:"xpEarned"`
	TimeSpentSeconds  int    `gorm:"default:0" json:"timeSpentSeconds"`
	StreakMaintained  bool   `gorm:"default:false" json:"streakMaintained"`
}

func (DailyProgress) TableName() string {
	return "daily_progress"
}
