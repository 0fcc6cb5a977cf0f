package service

import (
	"fmt"
	"time"
)

// Internal progress events. They are dispatched synchronously into the
// rollup aggregator inside the transaction that produced them, and are
// not part of the external API.

// QuestionCredited fires when a question's XP is awarded, which happens
// at most once per (user, question).
type QuestionCredited struct {
	UserID     uint
	QuestionID uint
	LevelID    uint
	XP         int
	Date       string // user-local
}

// Key is the event's natural key in the aggregator's seen-set.
func (e QuestionCredited) Key() string {
	return fmt.Sprintf("qc:%d:%d", e.UserID, e.QuestionID)
}

// LevelCompleted fires on the first passing completion of a level.
type LevelCompleted struct {
	UserID           uint
	LevelID          uint
	GroupID          uint
	XPDelta          int
	Passed           bool
	TimeSpentSeconds int
	CompletedAt      time.Time
	Date             string // user-local
}

func (e LevelCompleted) Key() string {
	return fmt.Sprintf("lc:%d:%d:%d", e.UserID, e.LevelID, e.CompletedAt.Unix())
}

// GroupCompleted fires when a group's completion percentage first
// reaches the completion threshold.
type GroupCompleted struct {
	UserID  uint
	GroupID uint
	Date    string
}

func (e GroupCompleted) Key() string {
	return fmt.Sprintf("gc:%d:%d", e.UserID, e.GroupID)
}

// StreakBroken fires when a completion lands after a gap of at least
// one full missed day.
type StreakBroken struct {
	UserID      uint
	Date        string
	PriorStreak int
}

func (e StreakBroken) Key() string {
	return fmt.Sprintf("sb:%d:%s", e.UserID, e.Date)
}
