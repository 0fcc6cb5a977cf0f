package service

import (
	"fmt"
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AggregatorService maintains the denormalized rollup tables. Progress
// events are applied synchronously inside the transaction that produced
// them, guarded by a seen-set so replays are no-ops. RebuildAggregates
// recomputes the same tables from the primary progress rows and must
// produce identical numbers for any date range.
type AggregatorService struct {
	AnalyticsRepo *repository.AnalyticsRepository
	IdentityRepo  *repository.IdentityRepository
	StudentRepo   *repository.StudentRepository
	ClassroomRepo *repository.ClassroomRepository
	LevelRepo     *repository.LevelRepository
	DB            *gorm.DB
}

func NewAggregatorService(
	analyticsRepo *repository.AnalyticsRepository,
	identityRepo *repository.IdentityRepository,
	studentRepo *repository.StudentRepository,
	classroomRepo *repository.ClassroomRepository,
	levelRepo *repository.LevelRepository,
	db *gorm.DB,
) *AggregatorService {
	return &AggregatorService{
		AnalyticsRepo: analyticsRepo,
		IdentityRepo:  identityRepo,
		StudentRepo:   studentRepo,
		ClassroomRepo: classroomRepo,
		LevelRepo:     levelRepo,
		DB:            db,
	}
}

// tenancy is the resolved scope chain for one learner.
type tenancy struct {
	StudentPK   uint
	ClassroomID *uint
	TeacherID   *uint
	CampusID    uint
}

// resolveTenancy maps an identity to its student row and up the chain to
// classroom, class teacher and campus. Staff and admin identities have no
// tenancy and contribute to the overall rollup only.
func (s *AggregatorService) resolveTenancy(tx *gorm.DB, userID uint) (*tenancy, error) {
	var identity model.Identity
	if err := tx.First(&identity, userID).Error; err != nil {
		return nil, err
	}
	if identity.Role != model.RoleStudent || identity.StudentID == nil {
		return nil, nil
	}
	var student model.Student
	if err := tx.Where("student_id = ?", *identity.StudentID).First(&student).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	t := &tenancy{
		StudentPK:   student.ID,
		ClassroomID: student.ClassroomID,
		CampusID:    student.CampusID,
	}
	if student.ClassroomID != nil {
		var classroom model.Classroom
		if err := tx.First(&classroom, *student.ClassroomID).Error; err == nil {
			t.TeacherID = classroom.ClassTeacherID
		}
	}
	return t, nil
}

// markActive bumps the active-student counters the first time a user
// produces any event on a local date, per scope.
func (s *AggregatorService) markActive(tx *gorm.DB, t *tenancy, userID uint, date string) error {
	fresh, err := s.AnalyticsRepo.MarkEvent(tx, fmt.Sprintf("active:all:%s:%d", date, userID))
	if err != nil {
		return err
	}
	if fresh {
		if err := s.AnalyticsRepo.IncrOverallActive(tx, date); err != nil {
			return err
		}
	}
	if t == nil {
		return nil
	}

	fresh, err = s.AnalyticsRepo.MarkEvent(tx, fmt.Sprintf("active:campus:%d:%s:%d", t.CampusID, date, userID))
	if err != nil {
		return err
	}
	if fresh {
		if err := s.AnalyticsRepo.IncrCampusActive(tx, t.CampusID, date); err != nil {
			return err
		}
	}

	if t.ClassroomID != nil {
		fresh, err = s.AnalyticsRepo.MarkEvent(tx, fmt.Sprintf("active:class:%d:%s:%d", *t.ClassroomID, date, userID))
		if err != nil {
			return err
		}
		if fresh {
			if err := s.AnalyticsRepo.IncrClassActive(tx, *t.ClassroomID, date); err != nil {
				return err
			}
		}
	}
	if t.TeacherID != nil {
		fresh, err = s.AnalyticsRepo.MarkEvent(tx, fmt.Sprintf("active:teacher:%d:%s:%d", *t.TeacherID, date, userID))
		if err != nil {
			return err
		}
		if fresh {
			if err := s.AnalyticsRepo.IncrTeacherActive(tx, *t.TeacherID, date); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyQuestionCredited folds a first-correct-answer credit into the
// rollups. Replays of the same credit are silently dropped.
func (s *AggregatorService) ApplyQuestionCredited(tx *gorm.DB, ev QuestionCredited) error {
	fresh, err := s.AnalyticsRepo.MarkEvent(tx, ev.Key())
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	if err := s.AnalyticsRepo.IncrDaily(tx, ev.UserID, ev.Date, repository.DailyDelta{
		QuestionsAnswered: 1,
		CorrectAnswers:    1,
		XPEarned:          ev.XP,
	}); err != nil {
		return err
	}

	t, err := s.resolveTenancy(tx, ev.UserID)
	if err != nil {
		return err
	}
	if err := s.markActive(tx, t, ev.UserID, ev.Date); err != nil {
		return err
	}

	if err := s.AnalyticsRepo.IncrOverall(tx, ev.Date, 0, 1, 1, ev.XP); err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	if err := s.AnalyticsRepo.IncrCampus(tx, t.CampusID, ev.Date, 0, 1, ev.XP); err != nil {
		return err
	}
	if t.ClassroomID != nil {
		if err := s.AnalyticsRepo.IncrClass(tx, *t.ClassroomID, ev.Date, 0, 1, ev.XP); err != nil {
			return err
		}
		if err := s.refreshClassRoster(tx, *t.ClassroomID, ev.Date); err != nil {
			return err
		}
	}
	if t.TeacherID != nil {
		if err := s.AnalyticsRepo.IncrTeacher(tx, *t.TeacherID, ev.Date, 0, ev.XP); err != nil {
			return err
		}
	}
	return s.refreshTrend(tx, t.CampusID, ev.Date)
}

// ApplyLevelCompleted folds a first passing completion into the rollups.
func (s *AggregatorService) ApplyLevelCompleted(tx *gorm.DB, ev LevelCompleted) error {
	fresh, err := s.AnalyticsRepo.MarkEvent(tx, ev.Key())
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	if err := s.AnalyticsRepo.IncrDaily(tx, ev.UserID, ev.Date, repository.DailyDelta{
		LevelsCompleted:  1,
		XPEarned:         ev.XPDelta,
		TimeSpentSeconds: ev.TimeSpentSeconds,
		StreakMaintained: true,
	}); err != nil {
		return err
	}

	t, err := s.resolveTenancy(tx, ev.UserID)
	if err != nil {
		return err
	}
	if err := s.markActive(tx, t, ev.UserID, ev.Date); err != nil {
		return err
	}

	if err := s.AnalyticsRepo.IncrOverall(tx, ev.Date, 1, 0, 0, ev.XPDelta); err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	if err := s.AnalyticsRepo.IncrCampus(tx, t.CampusID, ev.Date, 1, 0, ev.XPDelta); err != nil {
		return err
	}
	if t.ClassroomID != nil {
		if err := s.AnalyticsRepo.IncrClass(tx, *t.ClassroomID, ev.Date, 1, 0, ev.XPDelta); err != nil {
			return err
		}
		if err := s.refreshClassRoster(tx, *t.ClassroomID, ev.Date); err != nil {
			return err
		}
	}
	if t.TeacherID != nil {
		if err := s.AnalyticsRepo.IncrTeacher(tx, *t.TeacherID, ev.Date, 1, ev.XPDelta); err != nil {
			return err
		}
	}
	return s.refreshTrend(tx, t.CampusID, ev.Date)
}

// ApplyGroupCompleted records group completion in the seen-set; the
// rollup tables carry no per-group counters, so the event only needs to
// be deduplicated for callers layering on top of it.
func (s *AggregatorService) ApplyGroupCompleted(tx *gorm.DB, ev GroupCompleted) error {
	fresh, err := s.AnalyticsRepo.MarkEvent(tx, ev.Key())
	if err != nil {
		return err
	}
	if fresh {
		logger.Log.Info("group completed",
			zap.Uint("user_id", ev.UserID),
			zap.Uint("group_id", ev.GroupID),
			zap.String("date", ev.Date))
	}
	return nil
}

// ApplyStreakBroken records a streak break in the seen-set. The rollup
// tables carry no streak counters; the event exists for audit logging
// and for consumers layering on top of the seen-set.
func (s *AggregatorService) ApplyStreakBroken(tx *gorm.DB, ev StreakBroken) error {
	fresh, err := s.AnalyticsRepo.MarkEvent(tx, ev.Key())
	if err != nil {
		return err
	}
	if fresh {
		logger.Log.Info("streak broken",
			zap.Uint("user_id", ev.UserID),
			zap.String("date", ev.Date),
			zap.Int("prior_streak", ev.PriorStreak))
	}
	return nil
}

// refreshClassRoster recomputes the roster-derived columns of a class
// rollup row from current data. Both write paths use it, which keeps the
// incremental and rebuild outputs identical.
func (s *AggregatorService) refreshClassRoster(tx *gorm.DB, classroomID uint, date string) error {
	count, avg, err := s.classRosterStats(tx, classroomID)
	if err != nil {
		return err
	}
	return s.AnalyticsRepo.SetClassRoster(tx, classroomID, date, count, avg)
}

// classRosterStats returns the active roster size and the average
// curriculum completion percentage across that roster.
func (s *AggregatorService) classRosterStats(tx *gorm.DB, classroomID uint) (int, float64, error) {
	var students []model.Student
	if err := tx.Where("classroom_id = ? AND active = ?", classroomID, true).Find(&students).Error; err != nil {
		return 0, 0, err
	}
	if len(students) == 0 {
		return 0, 0, nil
	}

	var totalLevels int64
	if err := tx.Model(&model.Level{}).Where("active = ?", true).Count(&totalLevels).Error; err != nil {
		return 0, 0, err
	}
	if totalLevels == 0 {
		return len(students), 0, nil
	}

	var sum float64
	for i := range students {
		var identity model.Identity
		err := tx.Where("student_id = ?", students[i].StudentID).First(&identity).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return 0, 0, err
		}
		var completed int64
		if err := tx.Model(&model.LevelProgress{}).
			Where("user_id = ? AND is_completed = ?", identity.ID, true).
			Count(&completed).Error; err != nil {
			return 0, 0, err
		}
		sum += float64(completed) / float64(totalLevels) * 100
	}
	return len(students), sum / float64(len(students)), nil
}

// refreshTrend recomputes a campus's daily trend point from its rollup row.
func (s *AggregatorService) refreshTrend(tx *gorm.DB, campusID uint, date string) error {
	var row model.CampusAnalytics
	if err := tx.Where("campus_id = ? AND date = ?", campusID, date).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	var roster int64
	if err := tx.Model(&model.Student{}).
		Where("campus_id = ? AND active = ?", campusID, true).
		Count(&roster).Error; err != nil {
		return err
	}
	if roster == 0 {
		return nil
	}

	avgCompletion := float64(row.LevelsCompleted) / float64(roster)
	avgXP := float64(row.XPEarned) / float64(roster)
	return s.AnalyticsRepo.UpsertTrend(tx, campusID, date, avgCompletion, avgXP)
}

// RebuildAggregates wipes the derived rollups for a date range and
// recomputes them from the primary progress rows. It is the correctness
// oracle for the incremental path: after a rebuild every counter must
// match what the event stream produced.
func (s *AggregatorService) RebuildAggregates(from, to string) error {
	if _, err := time.Parse(model.DateLayout, from); err != nil {
		return util.Invalidf("bad from date %q", from)
	}
	if _, err := time.Parse(model.DateLayout, to); err != nil {
		return util.Invalidf("bad to date %q", to)
	}
	if from > to {
		return util.Invalidf("from %s is after to %s", from, to)
	}

	start := time.Now()
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.AnalyticsRepo.DeleteRollups(tx, from, to); err != nil {
			return err
		}
		if err := s.rebuildDailyRows(tx, from, to); err != nil {
			return err
		}

		rows, err := s.rebuildSourceRows(tx, from, to)
		if err != nil {
			return err
		}

		touchedClasses := make(map[string]uint) // "<classroomID>:<date>" -> classroomID
		touchedCampuses := make(map[string]uint)

		for i := range rows {
			row := &rows[i]
			active := row.QuestionsAnswered > 0 || row.LevelsCompleted > 0
			if !active {
				continue
			}
			t, err := s.resolveTenancy(tx, row.UserID)
			if err != nil {
				return err
			}

			if err := s.AnalyticsRepo.IncrOverall(tx, row.Date,
				row.LevelsCompleted, row.QuestionsAnswered, row.CorrectAnswers, row.XPEarned); err != nil {
				return err
			}
			if err := s.AnalyticsRepo.IncrOverallActive(tx, row.Date); err != nil {
				return err
			}
			if t == nil {
				continue
			}

			if err := s.AnalyticsRepo.IncrCampus(tx, t.CampusID, row.Date,
				row.LevelsCompleted, row.CorrectAnswers, row.XPEarned); err != nil {
				return err
			}
			if err := s.AnalyticsRepo.IncrCampusActive(tx, t.CampusID, row.Date); err != nil {
				return err
			}
			touchedCampuses[fmt.Sprintf("%d:%s", t.CampusID, row.Date)] = t.CampusID

			if t.ClassroomID != nil {
				if err := s.AnalyticsRepo.IncrClass(tx, *t.ClassroomID, row.Date,
					row.LevelsCompleted, row.CorrectAnswers, row.XPEarned); err != nil {
					return err
				}
				if err := s.AnalyticsRepo.IncrClassActive(tx, *t.ClassroomID, row.Date); err != nil {
					return err
				}
				touchedClasses[fmt.Sprintf("%d:%s", *t.ClassroomID, row.Date)] = *t.ClassroomID
			}
			if t.TeacherID != nil {
				if err := s.AnalyticsRepo.IncrTeacher(tx, *t.TeacherID, row.Date,
					row.LevelsCompleted, row.XPEarned); err != nil {
					return err
				}
				if err := s.AnalyticsRepo.IncrTeacherActive(tx, *t.TeacherID, row.Date); err != nil {
					return err
				}
			}
		}

		for key, classroomID := range touchedClasses {
			date := key[len(fmt.Sprintf("%d:", classroomID)):]
			if err := s.refreshClassRoster(tx, classroomID, date); err != nil {
				return err
			}
		}
		for key, campusID := range touchedCampuses {
			date := key[len(fmt.Sprintf("%d:", campusID)):]
			if err := s.refreshTrend(tx, campusID, date); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("rollup rebuild finished",
		zap.String("from", from),
		zap.String("to", to),
		zap.Duration("took", time.Since(start)))
	return nil
}

// rebuildDailyRows replaces the per-user daily counters in the range
// with values recomputed from the primary question and level progress
// rows. Question credits carry their first-correct timestamp and level
// completions their completion timestamp; both are folded onto the
// user's local date.
func (s *AggregatorService) rebuildDailyRows(tx *gorm.DB, from, to string) error {
	if err := tx.Unscoped().Where("date BETWEEN ? AND ?", from, to).
		Delete(&model.DailyProgress{}).Error; err != nil {
		return err
	}

	locs := make(map[uint]*time.Location)
	locFor := func(userID uint) *time.Location {
		if loc, ok := locs[userID]; ok {
			return loc
		}
		loc := time.UTC
		var identity model.Identity
		if err := tx.First(&identity, userID).Error; err == nil {
			loc = identity.Location()
		}
		locs[userID] = loc
		return loc
	}

	type dayKey struct {
		UserID uint
		Date   string
	}
	acc := make(map[dayKey]*model.DailyProgress)
	rowFor := func(userID uint, date string) *model.DailyProgress {
		k := dayKey{UserID: userID, Date: date}
		row, ok := acc[k]
		if !ok {
			row = &model.DailyProgress{UserID: userID, Date: date}
			acc[k] = row
		}
		return row
	}

	var credits []model.QuestionProgress
	if err := tx.Where("xp_earned > 0 AND answered_at IS NOT NULL").
		Find(&credits).Error; err != nil {
		return err
	}
	for i := range credits {
		qp := &credits[i]
		date := model.LocalDate(*qp.AnsweredAt, locFor(qp.UserID))
		if date < from || date > to {
			continue
		}
		row := rowFor(qp.UserID, date)
		row.QuestionsAnswered++
		row.CorrectAnswers++
		row.XPEarned += qp.XPEarned
	}

	var completions []model.LevelProgress
	if err := tx.Where("is_completed = ? AND completed_at IS NOT NULL", true).
		Find(&completions).Error; err != nil {
		return err
	}
	for i := range completions {
		lp := &completions[i]
		date := model.LocalDate(*lp.CompletedAt, locFor(lp.UserID))
		if date < from || date > to {
			continue
		}
		row := rowFor(lp.UserID, date)
		row.LevelsCompleted++
		row.XPEarned += lp.XPEarned
		row.TimeSpentSeconds += lp.TimeSpentSeconds
		row.StreakMaintained = true
	}

	for _, row := range acc {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *AggregatorService) rebuildSourceRows(tx *gorm.DB, from, to string) ([]model.DailyProgress, error) {
	var rows []model.DailyProgress
	err := tx.Where("date BETWEEN ? AND ?", from, to).
		Order("date ASC, user_id ASC").Find(&rows).Error
	return rows, err
}
