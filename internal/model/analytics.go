package model

// Date-stamped rollups. One row per (entity, date); every counter can be
// recomputed from the primary progress tables by the aggregator's rebuild
// path, which is the correctness oracle for the incremental writes.

// swagger:model ClassAnalytics
type ClassAnalytics struct {
	BaseModel
	ClassroomID     uint    `gorm:"index:idx_class_date,unique;not null" json:"classroomId"`
	Date            string  `gorm:"size:10;index:idx_class_date,unique;not null" json:"date"`
	StudentCount    int     `gorm:"default:0" json:"studentCount"`
	ActiveStudents  int     `gorm:"default:0" json:"activeStudents"`
	LevelsCompleted int     `gorm:"default:0" json:"levelsCompleted"`
	CorrectAnswers  int     `gorm:"default:0" json:"correctAnswers"`
	XPEarned        int     `gorm:"default:0" json:"xpEarned"`
	AvgCompletion   float64 `gorm:"default:0" json:"avgCompletion"`
}

func (ClassAnalytics) TableName() string {
	return "class_analytics"
}

// swagger:model TeacherAnalytics
type TeacherAnalytics struct {
	BaseModel
	TeacherID       uint   `gorm:"index:idx_teacher_date,unique;not null" json:"teacherId"`
	Date            string `gorm:"size:10;index:idx_teacher_date,unique;not null" json:"date"`
	StudentCount    int    `gorm:"default:0" json:"studentCount"`
	ActiveStudents  int    `gorm:"default:0" json:"activeStudents"`
	LevelsCompleted int    `gorm:"default:0" json:"levelsCompleted"`
	XPEarned        int    `gorm:"default:0" json:"xpEarned"`
}

func (TeacherAnalytics) TableName() string {
	return "teacher_analytics"
}

// swagger:model CampusAnalytics
type CampusAnalytics struct {
	BaseModel
	CampusID        uint   `gorm:"index:idx_campus_date,unique;not null" json:"campusId"`
	Date            string `gorm:"size:10;index:idx_campus_date,unique;not null" json:"date"`
	StudentCount    int    `gorm:"default:0" json:"studentCount"`
	ActiveStudents  int    `gorm:"default:0" json:"activeStudents"`
	LevelsCompleted int    `gorm:"default:0" json:"levelsCompleted"`
	CorrectAnswers  int    `gorm:"default:0" json:"correctAnswers"`
	XPEarned        int    `gorm:"default:0" json:"xpEarned"`
}

func (CampusAnalytics) TableName() string {
	return "campus_analytics"
}

// swagger:model OverallAnalytics
type OverallAnalytics struct {
	BaseModel
	Date              string `gorm:"size:10;uniqueIndex;not null" json:"date"`
	ActiveStudents    int    `gorm:"default:0" json:"activeStudents"`
	LevelsCompleted   int    `gorm:"default:0" json:"levelsCompleted"`
	QuestionsAnswered int    `gorm:"default:0" json:"questionsAnswered"`
	CorrectAnswers    int    `gorm:"default:0" json:"correctAnswers"`
	XPEarned          int    `gorm:"default:0" json:"xpEarned"`
}

func (OverallAnalytics) TableName() string {
	return "overall_analytics"
}

// PerformanceTrend is a lightweight per-campus daily score used for
// coordinator trend charts.
// swagger:model PerformanceTrend
type PerformanceTrend struct {
	BaseModel
	CampusID      uint    `gorm:"index:idx_trend_campus_date,unique;not null" json:"campusId"`
	Date          string  `gorm:"size:10;index:idx_trend_campus_date,unique;not null" json:"date"`
	AvgCompletion float64 `gorm:"default:0" json:"avgCompletion"`
	AvgXP         float64 `gorm:"default:0" json:"avgXp"`
}

func (PerformanceTrend) TableName() string {
	return "performance_trends"
}

// RollupEvent is the aggregator's seen-set. Every incremental update is
// keyed by the source event's natural key; replaying an event hits the
// unique index and becomes a no-op.
type RollupEvent struct {
	BaseModel
	EventKey string `gorm:"size:120;uniqueIndex;not null"`
}

func (RollupEvent) TableName() string {
	return "rollup_events"
}
