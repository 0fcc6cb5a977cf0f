package model

// Level is an ordered unit within a group. level_number is 1-based and
// unique within its group; every 10th level is a test level with its own
// question count and pass threshold.
// swagger:model Level
type Level struct {
	BaseModel
	GroupID          uint   `gorm:"index:idx_group_level,unique;not null" json:"groupId"`
	GroupNumber      int    `gorm:"index;not null" json:"groupNumber"`
	LevelNumber      int    `gorm:"index:idx_group_level,unique;not null" json:"levelNumber"`
	Title            string `gorm:"size:100" json:"title"`
	IsTestLevel      bool   `gorm:"default:false" json:"isTestLevel"`
	QuestionCount    int    `gorm:"default:6" json:"questionCount"`
	PassPercentage   int    `gorm:"default:60" json:"passPercentage"`
	XPReward         int    `gorm:"default:10" json:"xpReward"`
	TimeLimitSeconds int    `gorm:"default:0" json:"timeLimitSeconds"` // 0 = no limit
	Active           bool   `json:"active"`

	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

func (Level) TableName() string {
	return "levels"
}

// IsTestNumber reports whether a level number lands on a test slot.
func IsTestNumber(levelNumber int) bool {
	return levelNumber%TestLevelEvery == 0
}
