package model

import "time"

// QuestionProgress is the per (user, question) record. XPEarned flips from
// zero to the question's xp_value on the first correct answer and never
// changes afterwards; the unique index serializes concurrent submissions.
// swagger:model QuestionProgress
type QuestionProgress struct {
	BaseModel
	UserID     uint       `gorm:"index:idx_user_question,unique;not null" json:"userId"`
	QuestionID uint       `gorm:"index:idx_user_question,unique;not null" json:"questionId"`
	LevelID    uint       `gorm:"index;not null" json:"levelId"`
	IsAnswered bool       `gorm:"default:false" json:"isAnswered"`
	IsCorrect  bool       `gorm:"default:false" json:"isCorrect"`
	UserAnswer string     `gorm:"type:text" json:"userAnswer"`
	Attempts   int        `gorm:"default:0" json:"attempts"`
	XPEarned   int        `gorm:"default:0" json:"xpEarned"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

func (QuestionProgress) TableName() string {
	return "question_progress"
}
