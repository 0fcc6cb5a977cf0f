package service

import (
	"fmt"
	"strings"
	"testing"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database and runs the full
// migration against it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// testStack wires every service against one database, the same way the
// application container does.
type testStack struct {
	db *gorm.DB

	identityRepo  *repository.IdentityRepository
	campusRepo    *repository.CampusRepository
	gradeRepo     *repository.GradeRepository
	classroomRepo *repository.ClassroomRepository
	studentRepo   *repository.StudentRepository
	staffRepo     *repository.StaffRepository
	groupRepo     *repository.GroupRepository
	levelRepo     *repository.LevelRepository
	questionRepo  *repository.QuestionRepository
	progressRepo  *repository.ProgressRepository
	dailyRepo     *repository.DailyProgressRepository
	plantRepo     *repository.PlantRepository
	testRepo      *repository.TestAttemptRepository
	analyticsRepo *repository.AnalyticsRepository

	identity    *IdentityService
	progression *ProgressionService
	aggregator  *AggregatorService
	attempts    *AttemptService
	catalog     *CatalogService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := newTestDB(t)
	s := &testStack{
		db:            db,
		identityRepo:  repository.NewIdentityRepository(db),
		campusRepo:    repository.NewCampusRepository(db),
		gradeRepo:     repository.NewGradeRepository(db),
		classroomRepo: repository.NewClassroomRepository(db),
		studentRepo:   repository.NewStudentRepository(db),
		staffRepo:     repository.NewStaffRepository(db),
		groupRepo:     repository.NewGroupRepository(db),
		levelRepo:     repository.NewLevelRepository(db),
		questionRepo:  repository.NewQuestionRepository(db),
		progressRepo:  repository.NewProgressRepository(db),
		dailyRepo:     repository.NewDailyProgressRepository(db),
		plantRepo:     repository.NewPlantRepository(db),
		testRepo:      repository.NewTestAttemptRepository(db),
		analyticsRepo: repository.NewAnalyticsRepository(db),
	}
	s.identity = NewIdentityService(
		s.identityRepo, s.campusRepo, s.gradeRepo, s.classroomRepo, s.studentRepo, s.staffRepo, db)
	s.progression = NewProgressionService(
		s.groupRepo, s.levelRepo, s.progressRepo, s.dailyRepo, s.plantRepo, s.testRepo, db)
	s.aggregator = NewAggregatorService(
		s.analyticsRepo, s.identityRepo, s.studentRepo, s.classroomRepo, s.levelRepo, db)
	s.attempts = NewAttemptService(
		s.identityRepo, s.levelRepo, s.questionRepo, s.progressRepo, s.testRepo, s.groupRepo,
		s.progression, s.aggregator, db)
	cfg := &config.Config{Import: config.ImportConfig{DeadlineSeconds: 30}}
	s.catalog = NewCatalogService(
		s.groupRepo, s.levelRepo, s.questionRepo, s.testRepo, nil, cfg, db)
	return s
}

// seedSchool creates one campus, grade, classroom and an enrolled
// student with its login identity, and returns the identity's user id
// plus the tenancy rows for assertions.
type schoolFixture struct {
	Campus    model.Campus
	Grade     model.Grade
	Classroom model.Classroom
	Student   model.Student
	UserID    uint
}

func (s *testStack) seedSchool(t *testing.T) *schoolFixture {
	t.Helper()
	f := &schoolFixture{}

	f.Campus = model.Campus{Code: "C01", Name: "North Campus", Status: model.CampusActive}
	if err := s.db.Create(&f.Campus).Error; err != nil {
		t.Fatalf("seed campus: %v", err)
	}
	f.Grade = model.Grade{CampusID: f.Campus.ID, Label: "Grade 3", Shift: model.ShiftMorning}
	if err := s.db.Create(&f.Grade).Error; err != nil {
		t.Fatalf("seed grade: %v", err)
	}
	f.Classroom = model.Classroom{GradeID: f.Grade.ID, Section: "A"}
	if err := s.db.Create(&f.Classroom).Error; err != nil {
		t.Fatalf("seed classroom: %v", err)
	}

	studentID := "C01-M-G03-0001"
	f.Student = model.Student{
		StudentID:   studentID,
		Name:        "Ayesha",
		CampusID:    f.Campus.ID,
		GradeLabel:  f.Grade.Label,
		Shift:       model.ShiftMorning,
		ClassroomID: &f.Classroom.ID,
		Serial:      1,
		Active:      true,
	}
	if err := s.db.Create(&f.Student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}

	identity := model.Identity{
		Username:  studentID,
		Password:  "x",
		Name:      f.Student.Name,
		Role:      model.RoleStudent,
		StudentID: &studentID,
		Timezone:  "UTC",
		Active:    true,
	}
	if err := s.db.Create(&identity).Error; err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	f.UserID = identity.ID
	return f
}

// seedGroup creates a curriculum group with n sequential regular levels,
// q questions each. Question XP is 1 and the single accepted answer is
// "yes".
func (s *testStack) seedGroup(t *testing.T, groupNumber, levels, questions int) (*model.Group, []model.Level) {
	t.Helper()
	group := model.Group{
		GroupNumber:     groupNumber,
		Title:           fmt.Sprintf("Group %d", groupNumber),
		UnlockCondition: model.UnlockCompletePrevious,
		TotalLevels:     levels,
	}
	if err := s.db.Create(&group).Error; err != nil {
		t.Fatalf("seed group: %v", err)
	}

	out := make([]model.Level, 0, levels)
	for n := 1; n <= levels; n++ {
		level := model.Level{
			GroupID:        group.ID,
			GroupNumber:    groupNumber,
			LevelNumber:    n,
			Title:          fmt.Sprintf("Level %d", n),
			IsTestLevel:    model.IsTestNumber(n),
			QuestionCount:  questions,
			PassPercentage: model.RegularPassPercent,
			XPReward:       10,
			Active:         true,
		}
		if err := s.db.Create(&level).Error; err != nil {
			t.Fatalf("seed level %d: %v", n, err)
		}
		for q := 1; q <= questions; q++ {
			question := model.Question{
				LevelID:       level.ID,
				QuestionOrder: q,
				QuestionType:  model.QuestionMCQ,
				Prompt:        fmt.Sprintf("Q%d", q),
				Options:       []byte(`["yes","no"]`),
				CorrectAnswer: []byte(`"yes"`),
				XPValue:       1,
				Active:        true,
			}
			if err := s.db.Create(&question).Error; err != nil {
				t.Fatalf("seed question %d/%d: %v", n, q, err)
			}
		}
		out = append(out, level)
	}
	return &group, out
}

// answerAll submits the same answer for every question of a level.
func (s *testStack) answerAll(t *testing.T, userID uint, level *model.Level, answer string) {
	t.Helper()
	questions, err := s.questionRepo.ListByLevel(level.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	for i := range questions {
		if _, err := s.attempts.SubmitAnswer(userID, questions[i].ID, answer); err != nil {
			t.Fatalf("submit answer for question %d: %v", questions[i].ID, err)
		}
	}
}
