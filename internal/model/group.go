package model

const (
	// Curriculum shape: group 0 is the starter chapter, groups 1..7 are full ones.
	MinGroupNumber       = 0
	MaxGroupNumber       = 7
	StarterGroupLevels   = 20
	RegularGroupLevels   = 50
	RegularQuestions     = 6
	RegularPassPercent   = 60
	TestLevelEvery       = 10
	GroupCompletePercent = 80
)

type UnlockCondition string

const (
	UnlockCompletePrevious UnlockCondition = "complete_previous"
	UnlockPassTest         UnlockCondition = "pass_unlock_test"
	UnlockBoth             UnlockCondition = "both"
)

// LevelCountFor returns the number of levels a group must own.
func LevelCountFor(groupNumber int) int {
	if groupNumber == 0 {
		return StarterGroupLevels
	}
	return RegularGroupLevels
}

// Group is a curriculum chapter.
// swagger:model Group
type Group struct {
	BaseModel
	GroupNumber     int             `gorm:"uniqueIndex;not null" json:"groupNumber"`
	Title           string          `gorm:"size:100;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	UnlockCondition UnlockCondition `gorm:"size:30;default:'complete_previous'" json:"unlockCondition"`
	TotalLevels     int             `gorm:"not null" json:"totalLevels"`
	XPReward        int             `gorm:"default:0" json:"xpReward"`
	Badge           string          `gorm:"size:100" json:"badge"`
}

func (Group) TableName() string {
	return "curriculum_groups"
}

// RequiresUnlockTest reports whether the group is gated on a passing
// attempt of its unlock test.
func (g *Group) RequiresUnlockTest() bool {
	return g.UnlockCondition == UnlockPassTest || g.UnlockCondition == UnlockBoth
}

// RequiresPreviousGroup reports whether the group is gated on completion
// of the previous group.
func (g *Group) RequiresPreviousGroup() bool {
	return g.UnlockCondition == UnlockCompletePrevious || g.UnlockCondition == UnlockBoth
}
