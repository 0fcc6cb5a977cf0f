package service

import (
	"testing"

	"english_edu_backend/internal/model"
	"time"
)

func today() string {
	return model.LocalDate(time.Now(), time.UTC)
}

// withTeacher attaches a class teacher to the fixture classroom so
// teacher rollups have a target.
func (s *testStack) withTeacher(t *testing.T, f *schoolFixture) *model.Staff {
	t.Helper()
	teacher := model.Staff{
		StaffID:  "C01-M-T-001",
		Kind:     model.StaffTeacher,
		Name:     "Mr Khan",
		Email:    "khan@school.test",
		CampusID: &f.Campus.ID,
		Shift:    model.ShiftMorning,
		Serial:   1,
		Active:   true,
	}
	if err := s.db.Create(&teacher).Error; err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	if err := s.db.Model(&model.Classroom{}).Where("id = ?", f.Classroom.ID).
		Update("class_teacher_id", teacher.ID).Error; err != nil {
		t.Fatalf("assign teacher: %v", err)
	}
	return &teacher
}

func TestApplyQuestionCreditedReplayIsNoop(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)
	s.seedGroup(t, 0, 1, 1)

	ev := QuestionCredited{
		UserID:     f.UserID,
		QuestionID: 42,
		LevelID:    1,
		XP:         3,
		Date:       today(),
	}
	for i := 0; i < 3; i++ {
		if err := s.aggregator.ApplyQuestionCredited(s.db, ev); err != nil {
			t.Fatalf("apply #%d: %v", i+1, err)
		}
	}

	overall, err := s.analyticsRepo.GetOverall(today())
	if err != nil {
		t.Fatalf("overall: %v", err)
	}
	if overall.QuestionsAnswered != 1 || overall.CorrectAnswers != 1 || overall.XPEarned != 3 {
		t.Errorf("overall after replay = %+v", overall)
	}
	if overall.ActiveStudents != 1 {
		t.Errorf("ActiveStudents = %d, want 1", overall.ActiveStudents)
	}

	campus, err := s.analyticsRepo.GetCampus(f.Campus.ID, today())
	if err != nil {
		t.Fatalf("campus: %v", err)
	}
	if campus.XPEarned != 3 || campus.ActiveStudents != 1 {
		t.Errorf("campus after replay = %+v", campus)
	}
}

func TestStaffEventsRollUpToOverallOnly(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)
	_ = f

	admin := model.Identity{
		Username: "admin",
		Password: "x",
		Name:     "Admin",
		Role:     model.RoleAdmin,
		Timezone: "UTC",
		Active:   true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	ev := QuestionCredited{UserID: admin.ID, QuestionID: 7, XP: 2, Date: today()}
	if err := s.aggregator.ApplyQuestionCredited(s.db, ev); err != nil {
		t.Fatalf("apply: %v", err)
	}

	overall, err := s.analyticsRepo.GetOverall(today())
	if err != nil {
		t.Fatalf("overall: %v", err)
	}
	if overall.XPEarned != 2 {
		t.Errorf("overall = %+v", overall)
	}
	if _, err := s.analyticsRepo.GetCampus(f.Campus.ID, today()); err == nil {
		t.Error("campus rollup written for a user with no tenancy")
	}
}

func TestRebuildMatchesIncremental(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)
	teacher := s.withTeacher(t, f)
	_, levels := s.seedGroup(t, 0, 3, 2)

	// A realistic session: a miss, then full marks on level 1, and a
	// single correct answer on level 2.
	questions, err := s.questionRepo.ListByLevel(levels[0].ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if _, err := s.attempts.SubmitAnswer(f.UserID, questions[0].ID, "no"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s.answerAll(t, f.UserID, &levels[0], "yes")
	if _, err := s.attempts.CompleteLevel(f.UserID, levels[0].ID, 40); err != nil {
		t.Fatalf("complete: %v", err)
	}
	q2, err := s.questionRepo.ListByLevel(levels[1].ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if _, err := s.attempts.SubmitAnswer(f.UserID, q2[0].ID, "yes"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	date := today()
	before, err := s.analyticsRepo.GetOverall(date)
	if err != nil {
		t.Fatalf("overall before: %v", err)
	}
	classBefore, err := s.analyticsRepo.GetClass(f.Classroom.ID, date)
	if err != nil {
		t.Fatalf("class before: %v", err)
	}

	if err := s.aggregator.RebuildAggregates(date, date); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	after, err := s.analyticsRepo.GetOverall(date)
	if err != nil {
		t.Fatalf("overall after: %v", err)
	}
	if after.LevelsCompleted != before.LevelsCompleted ||
		after.QuestionsAnswered != before.QuestionsAnswered ||
		after.CorrectAnswers != before.CorrectAnswers ||
		after.XPEarned != before.XPEarned ||
		after.ActiveStudents != before.ActiveStudents {
		t.Errorf("overall rebuild mismatch:\n before %+v\n after  %+v", before, after)
	}

	classAfter, err := s.analyticsRepo.GetClass(f.Classroom.ID, date)
	if err != nil {
		t.Fatalf("class after: %v", err)
	}
	if classAfter.LevelsCompleted != classBefore.LevelsCompleted ||
		classAfter.CorrectAnswers != classBefore.CorrectAnswers ||
		classAfter.XPEarned != classBefore.XPEarned ||
		classAfter.ActiveStudents != classBefore.ActiveStudents ||
		classAfter.StudentCount != classBefore.StudentCount ||
		classAfter.AvgCompletion != classBefore.AvgCompletion {
		t.Errorf("class rebuild mismatch:\n before %+v\n after  %+v", classBefore, classAfter)
	}

	var teacherRow model.TeacherAnalytics
	if err := s.db.Where("teacher_id = ? AND date = ?", teacher.ID, date).First(&teacherRow).Error; err != nil {
		t.Fatalf("teacher row after rebuild: %v", err)
	}
	if teacherRow.LevelsCompleted != 1 || teacherRow.ActiveStudents != 1 {
		t.Errorf("teacher row = %+v", teacherRow)
	}
}

func TestRebuildRejectsBadRange(t *testing.T) {
	s := newTestStack(t)
	tests := []struct {
		name     string
		from, to string
	}{
		{name: "garbage from", from: "not-a-date", to: "2026-03-10"},
		{name: "garbage to", from: "2026-03-10", to: "later"},
		{name: "inverted range", from: "2026-03-11", to: "2026-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.aggregator.RebuildAggregates(tt.from, tt.to); err == nil {
				t.Error("RebuildAggregates accepted a bad range")
			}
		})
	}
}

func TestQuestionCreditUpdatesTrend(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)
	_, levels := s.seedGroup(t, 0, 1, 2)

	questions, err := s.questionRepo.ListByLevel(levels[0].ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if _, err := s.attempts.SubmitAnswer(f.UserID, questions[0].ID, "yes"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A day whose only activity is a question credit still carries a
	// live trend point.
	date := today()
	var trend model.PerformanceTrend
	if err := s.db.Where("campus_id = ? AND date = ?", f.Campus.ID, date).First(&trend).Error; err != nil {
		t.Fatalf("trend row after credit: %v", err)
	}
	if trend.AvgXP != 1 || trend.AvgCompletion != 0 {
		t.Errorf("trend = %+v, want avg_xp 1 avg_completion 0", trend)
	}

	if err := s.aggregator.RebuildAggregates(date, date); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	var rebuilt model.PerformanceTrend
	if err := s.db.Where("campus_id = ? AND date = ?", f.Campus.ID, date).First(&rebuilt).Error; err != nil {
		t.Fatalf("trend row after rebuild: %v", err)
	}
	if rebuilt.AvgXP != trend.AvgXP || rebuilt.AvgCompletion != trend.AvgCompletion {
		t.Errorf("trend rebuild mismatch:\n before %+v\n after  %+v", trend, rebuilt)
	}
}

func TestRebuildRepairsDailyDrift(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)
	_, levels := s.seedGroup(t, 0, 2, 1)

	s.answerAll(t, f.UserID, &levels[0], "yes")
	if _, err := s.attempts.CompleteLevel(f.UserID, levels[0].ID, 25); err != nil {
		t.Fatalf("complete: %v", err)
	}

	date := today()
	want, err := s.dailyRepo.Get(f.UserID, date)
	if err != nil {
		t.Fatalf("daily before: %v", err)
	}

	// Corrupt the daily counters, then rebuild from the primary rows.
	if err := s.db.Model(&model.DailyProgress{}).
		Where("user_id = ? AND date = ?", f.UserID, date).
		Updates(map[string]interface{}{"xp_earned": 999, "levels_completed": 7}).Error; err != nil {
		t.Fatalf("corrupt daily: %v", err)
	}

	if err := s.aggregator.RebuildAggregates(date, date); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	got, err := s.dailyRepo.Get(f.UserID, date)
	if err != nil {
		t.Fatalf("daily after: %v", err)
	}
	if got.XPEarned != want.XPEarned ||
		got.LevelsCompleted != want.LevelsCompleted ||
		got.QuestionsAnswered != want.QuestionsAnswered ||
		got.CorrectAnswers != want.CorrectAnswers ||
		got.TimeSpentSeconds != want.TimeSpentSeconds ||
		got.StreakMaintained != want.StreakMaintained {
		t.Errorf("daily rebuild mismatch:\n want %+v\n got  %+v", want, got)
	}

	overall, err := s.analyticsRepo.GetOverall(date)
	if err != nil {
		t.Fatalf("overall after rebuild: %v", err)
	}
	if overall.XPEarned != want.XPEarned || overall.LevelsCompleted != want.LevelsCompleted {
		t.Errorf("overall folded the corrupt row: %+v", overall)
	}
}
