package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepository owns the denormalized rollup rows. All increments go
// through upsert-with-atomic-counter statements so that concurrent writers
// never read-modify-write a hot row. Methods take the caller's transaction:
// rollups commit or roll back together with the progress write that caused
// them.
type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

// MarkEvent records an event key in the seen-set. It returns false when
// the key was already present, which makes every replay a no-op.
func (r *AnalyticsRepository) MarkEvent(tx *gorm.DB, key string) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RollupEvent{EventKey: key})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DailyDelta is one event's contribution to a DailyProgress row.
type DailyDelta struct {
	LevelsCompleted   int
	QuestionsAnswered int
	CorrectAnswers    int
	XPEarned          int
	TimeSpentSeconds  int
	StreakMaintained  bool
}

func (r *AnalyticsRepository) IncrDaily(tx *gorm.DB, userID uint, date string, d DailyDelta) error {
	row := model.DailyProgress{
		UserID:            userID,
		Date:              date,
		LevelsCompleted:   d.LevelsCompleted,
		QuestionsAnswered: d.QuestionsAnswered,
		CorrectAnswers:    d.CorrectAnswers,
		XPEarned:          d.XPEarned,
		TimeSpentSeconds:  d.TimeSpentSeconds,
		StreakMaintained:  d.StreakMaintained,
	}
	assignments := map[string]interface{}{
		"levels_completed":   gorm.Expr("levels_completed + ?", d.LevelsCompleted),
		"questions_answered": gorm.Expr("questions_answered + ?", d.QuestionsAnswered),
		"correct_answers":    gorm.Expr("correct_answers + ?", d.CorrectAnswers),
		"xp_earned":          gorm.Expr("xp_earned + ?", d.XPEarned),
		"time_spent_seconds": gorm.Expr("time_spent_seconds + ?", d.TimeSpentSeconds),
	}
	if d.StreakMaintained {
		assignments["streak_maintained"] = true
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrClass(tx *gorm.DB, classroomID uint, date string, levels, correct, xp int) error {
	row := model.ClassAnalytics{
		ClassroomID:     classroomID,
		Date:            date,
		LevelsCompleted: levels,
		CorrectAnswers:  correct,
		XPEarned:        xp,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "classroom_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"levels_completed": gorm.Expr("levels_completed + ?", levels),
			"correct_answers":  gorm.Expr("correct_answers + ?", correct),
			"xp_earned":        gorm.Expr("xp_earned + ?", xp),
		}),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrTeacher(tx *gorm.DB, teacherID uint, date string, levels, xp int) error {
	row := model.TeacherAnalytics{
		TeacherID:       teacherID,
		Date:            date,
		LevelsCompleted: levels,
		XPEarned:        xp,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "teacher_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"levels_completed": gorm.Expr("levels_completed + ?", levels),
			"xp_earned":        gorm.Expr("xp_earned + ?", xp),
		}),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrCampus(tx *gorm.DB, campusID uint, date string, levels, correct, xp int) error {
	row := model.CampusAnalytics{
		CampusID:        campusID,
		Date:            date,
		LevelsCompleted: levels,
		CorrectAnswers:  correct,
		XPEarned:        xp,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campus_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"levels_completed": gorm.Expr("levels_completed + ?", levels),
			"correct_answers":  gorm.Expr("correct_answers + ?", correct),
			"xp_earned":        gorm.Expr("xp_earned + ?", xp),
		}),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrOverall(tx *gorm.DB, date string, levels, questions, correct, xp int) error {
	row := model.OverallAnalytics{
		Date:              date,
		LevelsCompleted:   levels,
		QuestionsAnswered: questions,
		CorrectAnswers:    correct,
		XPEarned:          xp,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"levels_completed":   gorm.Expr("levels_completed + ?", levels),
			"questions_answered": gorm.Expr("questions_answered + ?", questions),
			"correct_answers":    gorm.Expr("correct_answers + ?", correct),
			"xp_earned":          gorm.Expr("xp_earned + ?", xp),
		}),
	}).Create(&row).Error
}

// Active-student counters are bumped once per (scope, user, date); the
// caller guards them with a seen-set key before calling.

func (r *AnalyticsRepository) IncrClassActive(tx *gorm.DB, classroomID uint, date string) error {
	row := model.ClassAnalytics{ClassroomID: classroomID, Date: date, ActiveStudents: 1}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "classroom_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"active_students": gorm.Expr("active_students + 1"),
		}),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrTeacherActive(tx *gorm.DB, teacherID uint, date string) error {
	row := model.TeacherAnalytics{TeacherID: teacherID, Date: date, ActiveStudents: 1}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "teacher_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"active_students": gorm.Expr("active_students + 1"),
		}),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrCampusActive(tx *gorm.DB, campusID uint, date string) error {
	row := model.CampusAnalytics{CampusID: campusID, Date: date, ActiveStudents: 1}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campus_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"active_students": gorm.Expr("active_students + 1"),
		}),
	}).Create(&row).Error
}

func (r *AnalyticsRepository) IncrOverallActive(tx *gorm.DB, date string) error {
	row := model.OverallAnalytics{Date: date, ActiveStudents: 1}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"active_students": gorm.Expr("active_students + 1"),
		}),
	}).Create(&row).Error
}

// SetClassRoster overwrites the roster-derived columns. Both the
// incremental path and the rebuild path call it with freshly computed
// values, so the two stay comparable.
func (r *AnalyticsRepository) SetClassRoster(tx *gorm.DB, classroomID uint, date string, studentCount int, avgCompletion float64) error {
	row := model.ClassAnalytics{
		ClassroomID:   classroomID,
		Date:          date,
		StudentCount:  studentCount,
		AvgCompletion: avgCompletion,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "classroom_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"student_count":  studentCount,
			"avg_completion": avgCompletion,
		}),
	}).Create(&row).Error
}

// DeleteRollups clears the derived rows in a date range ahead of a rebuild.
// The seen-set stays: it guards the incremental path only.
func (r *AnalyticsRepository) DeleteRollups(tx *gorm.DB, from, to string) error {
	for _, m := range []interface{}{
		&model.ClassAnalytics{},
		&model.TeacherAnalytics{},
		&model.CampusAnalytics{},
		&model.OverallAnalytics{},
		&model.PerformanceTrend{},
	} {
		if err := tx.Unscoped().Where("date BETWEEN ? AND ?", from, to).Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *AnalyticsRepository) GetOverall(date string) (*model.OverallAnalytics, error) {
	var row model.OverallAnalytics
	err := r.DB.Where("date = ?", date).First(&row).Error
	return &row, err
}

func (r *AnalyticsRepository) GetClass(classroomID uint, date string) (*model.ClassAnalytics, error) {
	var row model.ClassAnalytics
	err := r.DB.Where("classroom_id = ? AND date = ?", classroomID, date).First(&row).Error
	return &row, err
}

func (r *AnalyticsRepository) GetCampus(campusID uint, date string) (*model.CampusAnalytics, error) {
	var row model.CampusAnalytics
	err := r.DB.Where("campus_id = ? AND date = ?", campusID, date).First(&row).Error
	return &row, err
}

func (r *AnalyticsRepository) ListTrends(campusID uint, from, to string) ([]model.PerformanceTrend, error) {
	var rows []model.PerformanceTrend
	err := r.DB.Where("campus_id = ? AND date BETWEEN ? AND ?", campusID, from, to).
		Order("date ASC").Find(&rows).Error
	return rows, err
}

func (r *AnalyticsRepository) UpsertTrend(tx *gorm.DB, campusID uint, date string, avgCompletion, avgXP float64) error {
	row := model.PerformanceTrend{
		CampusID:      campusID,
		Date:          date,
		AvgCompletion: avgCompletion,
		AvgXP:         avgXP,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campus_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"avg_completion": avgCompletion,
			"avg_xp":         avgXP,
		}),
	}).Create(&row).Error
}
