package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DashboardService assembles the role dashboards from the rollup tables.
// Reads go through a Redis cache keyed by endpoint, scope and date; a
// cache miss or a Redis outage falls through to the database.
type DashboardService struct {
	IdentityRepo  *repository.IdentityRepository
	StudentRepo   *repository.StudentRepository
	StaffRepo     *repository.StaffRepository
	ClassroomRepo *repository.ClassroomRepository
	GradeRepo     *repository.GradeRepository
	CampusRepo    *repository.CampusRepository
	AnalyticsRepo *repository.AnalyticsRepository
	ProgressRepo  *repository.ProgressRepository
	DailyRepo     *repository.DailyProgressRepository
	PlantRepo     *repository.PlantRepository
	GroupRepo     *repository.GroupRepository
	Progression   *ProgressionService
	Scope         *ScopeService
	Redis         *redis.Client
	Cfg           *config.Config
	DB            *gorm.DB
}

func NewDashboardService(
	identityRepo *repository.IdentityRepository,
	studentRepo *repository.StudentRepository,
	staffRepo *repository.StaffRepository,
	classroomRepo *repository.ClassroomRepository,
	gradeRepo *repository.GradeRepository,
	campusRepo *repository.CampusRepository,
	analyticsRepo *repository.AnalyticsRepository,
	progressRepo *repository.ProgressRepository,
	dailyRepo *repository.DailyProgressRepository,
	plantRepo *repository.PlantRepository,
	groupRepo *repository.GroupRepository,
	progression *ProgressionService,
	scope *ScopeService,
	redisClient *redis.Client,
	cfg *config.Config,
	db *gorm.DB,
) *DashboardService {
	return &DashboardService{
		IdentityRepo:  identityRepo,
		StudentRepo:   studentRepo,
		StaffRepo:     staffRepo,
		ClassroomRepo: classroomRepo,
		GradeRepo:     gradeRepo,
		CampusRepo:    campusRepo,
		AnalyticsRepo: analyticsRepo,
		ProgressRepo:  progressRepo,
		DailyRepo:     dailyRepo,
		PlantRepo:     plantRepo,
		GroupRepo:     groupRepo,
		Progression:   progression,
		Scope:         scope,
		Redis:         redisClient,
		Cfg:           cfg,
		DB:            db,
	}
}

func (s *DashboardService) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.Redis == nil || !s.Cfg.Cache.Enabled {
		return false
	}
	raw, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *DashboardService) cacheSet(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if s.Redis == nil || !s.Cfg.Cache.Enabled {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.Log.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *DashboardService) dashboardTTL() time.Duration {
	return time.Duration(s.Cfg.Cache.DashboardTTLMin) * time.Minute
}

func (s *DashboardService) overviewTTL() time.Duration {
	return time.Duration(s.Cfg.Cache.OverviewTTLMin) * time.Minute
}

// GroupOverview is one entry in the student's curriculum map.
type GroupOverview struct {
	GroupNumber          int     `json:"groupNumber"`
	Title                string  `json:"title"`
	IsUnlocked           bool    `json:"isUnlocked"`
	IsCompleted          bool    `json:"isCompleted"`
	LevelsCompleted      int     `json:"levelsCompleted"`
	TotalLevels          int     `json:"totalLevels"`
	CompletionPercentage float64 `json:"completionPercentage"`
	Badge                string  `json:"badge,omitempty"`
}

// ProgressOverview is the student home screen.
type ProgressOverview struct {
	TotalXP   int                  `json:"totalXp"`
	Hearts    int                  `json:"hearts"`
	Streak    StreakSummary        `json:"streak"`
	Plant     *model.UserPlant     `json:"plant"`
	Today     *model.DailyProgress `json:"today,omitempty"`
	Groups    []GroupOverview      `json:"groups"`
	NextLevel *NextLevelPointer    `json:"nextLevel,omitempty"`
}

// GetProgressOverview builds the student home screen. The hearts counter
// is a fixed allowance for now; attempts are not limited server-side.
func (s *DashboardService) GetProgressOverview(ctx context.Context, userID uint) (*ProgressOverview, error) {
	key := fmt.Sprintf("dash:overview:%d", userID)
	var cached ProgressOverview
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	identity, err := s.IdentityRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	today := model.LocalDate(time.Now(), identity.Location())

	totalXP, err := s.ProgressRepo.TotalXP(userID)
	if err != nil {
		return nil, err
	}
	streak, err := s.Progression.Streaks(userID, today)
	if err != nil {
		return nil, err
	}
	plant, err := s.PlantRepo.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	s.Progression.RefreshWilting(plant, today)

	groups, err := s.GroupRepo.List()
	if err != nil {
		return nil, err
	}
	gpRows, err := s.ProgressRepo.ListGroupProgress(userID)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[uint]*model.GroupProgress, len(gpRows))
	for i := range gpRows {
		byGroup[gpRows[i].GroupID] = &gpRows[i]
	}

	overview := &ProgressOverview{
		TotalXP: totalXP,
		Hearts:  model.DefaultHearts,
		Streak:  streak,
		Plant:   plant,
	}
	for i := range groups {
		g := &groups[i]
		entry := GroupOverview{
			GroupNumber: g.GroupNumber,
			Title:       g.Title,
			TotalLevels: g.TotalLevels,
			Badge:       g.Badge,
		}
		if gp, ok := byGroup[g.ID]; ok {
			entry.IsUnlocked = gp.IsUnlocked
			entry.IsCompleted = gp.IsCompleted
			entry.LevelsCompleted = gp.LevelsCompleted
			entry.CompletionPercentage = gp.CompletionPercentage
		}
		if g.GroupNumber == model.MinGroupNumber {
			entry.IsUnlocked = true
		}
		overview.Groups = append(overview.Groups, entry)
	}

	if dp, err := s.DailyRepo.Get(userID, today); err == nil {
		overview.Today = dp
	}
	if next, err := s.Progression.NextLevel(userID); err == nil {
		overview.NextLevel = next
	}

	s.cacheSet(ctx, key, overview, s.overviewTTL())
	return overview, nil
}

// StudentRow is one roster line on the teacher dashboard.
type StudentRow struct {
	StudentID       string  `json:"studentId"`
	Name            string  `json:"name"`
	TotalXP         int     `json:"totalXp"`
	LevelsCompleted int     `json:"levelsCompleted"`
	CurrentStreak   int     `json:"currentStreak"`
	Completion      float64 `json:"completion"`
}

// TeacherDashboard is the class teacher's day view.
type TeacherDashboard struct {
	Date      string                `json:"date"`
	Classroom *model.Classroom      `json:"classroom,omitempty"`
	Analytics *model.ClassAnalytics `json:"analytics,omitempty"`
	Roster    []StudentRow          `json:"roster"`
}

func (s *DashboardService) GetTeacherDashboard(ctx context.Context, userID uint, date string) (*TeacherDashboard, error) {
	filter, err := s.Scope.Resolve(userID)
	if err != nil {
		return nil, err
	}
	if filter.Role() != model.RoleTeacher && filter.Role() != model.RoleAdmin {
		return nil, util.Forbiddenf("teacher dashboard requires a teacher account")
	}
	classroomID := filter.ClassroomID()
	if filter.Role() == model.RoleTeacher && classroomID == nil {
		return &TeacherDashboard{Date: date}, nil
	}

	key := fmt.Sprintf("dash:teacher:%d:%s", userID, date)
	var cached TeacherDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	dash := &TeacherDashboard{Date: date}
	if classroomID != nil {
		classroom, err := s.ClassroomRepo.FindByID(*classroomID)
		if err != nil {
			return nil, err
		}
		dash.Classroom = classroom
		if analytics, err := s.AnalyticsRepo.GetClass(*classroomID, date); err == nil {
			dash.Analytics = analytics
		}
	}

	students, err := s.Scope.ListStudents(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.studentRows(students, date)
	if err != nil {
		return nil, err
	}
	dash.Roster = rows

	s.cacheSet(ctx, key, dash, s.dashboardTTL())
	return dash, nil
}

func (s *DashboardService) studentRows(students []model.Student, date string) ([]StudentRow, error) {
	var totalLevels int64
	if err := s.DB.Model(&model.Level{}).Where("active = ?", true).Count(&totalLevels).Error; err != nil {
		return nil, err
	}

	rows := make([]StudentRow, 0, len(students))
	for i := range students {
		st := &students[i]
		row := StudentRow{StudentID: st.StudentID, Name: st.Name}

		identity, err := s.IdentityRepo.FindByStudentID(st.StudentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				rows = append(rows, row)
				continue
			}
			return nil, err
		}

		if xp, err := s.ProgressRepo.TotalXP(identity.ID); err == nil {
			row.TotalXP = xp
		}
		completedIDs, err := s.ProgressRepo.ListCompletedLevelIDs(identity.ID)
		if err != nil {
			return nil, err
		}
		row.LevelsCompleted = len(completedIDs)
		if totalLevels > 0 {
			row.Completion = float64(row.LevelsCompleted) / float64(totalLevels) * 100
		}
		if dates, err := s.DailyRepo.CompletionDates(identity.ID); err == nil {
			row.CurrentStreak = CurrentStreak(dates, date)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// TeacherSummary is one line on the coordinator dashboard.
type TeacherSummary struct {
	StaffID   string                  `json:"staffId"`
	Name      string                  `json:"name"`
	Analytics *model.TeacherAnalytics `json:"analytics,omitempty"`
}

// CoordinatorDashboard groups the coordinator's teachers with their day
// rollups and the campus trend window.
type CoordinatorDashboard struct {
	Date     string                   `json:"date"`
	Teachers []TeacherSummary         `json:"teachers"`
	Trends   []model.PerformanceTrend `json:"trends,omitempty"`
}

func (s *DashboardService) GetCoordinatorDashboard(ctx context.Context, userID uint, date string, trendDays int) (*CoordinatorDashboard, error) {
	filter, err := s.Scope.Resolve(userID)
	if err != nil {
		return nil, err
	}
	if filter.Role() != model.RoleCoordinator {
		return nil, util.Forbiddenf("coordinator dashboard requires a coordinator account")
	}

	key := fmt.Sprintf("dash:coordinator:%d:%s:%d", userID, date, trendDays)
	var cached CoordinatorDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	teachers, err := s.StaffRepo.ListTeachersByCoordinator(filter.CoordinatorID())
	if err != nil {
		return nil, err
	}

	dash := &CoordinatorDashboard{Date: date}
	campuses := make(map[uint]bool)
	for i := range teachers {
		t := &teachers[i]
		summary := TeacherSummary{StaffID: t.StaffID, Name: t.Name}
		var analytics model.TeacherAnalytics
		if err := s.DB.Where("teacher_id = ? AND date = ?", t.ID, date).First(&analytics).Error; err == nil {
			summary.Analytics = &analytics
		}
		dash.Teachers = append(dash.Teachers, summary)
		if t.CampusID != nil {
			campuses[*t.CampusID] = true
		}
	}

	if trendDays > 0 {
		end, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, util.Invalidf("bad date %q", date)
		}
		from := end.AddDate(0, 0, -(trendDays - 1)).Format(model.DateLayout)
		for campusID := range campuses {
			trends, err := s.AnalyticsRepo.ListTrends(campusID, from, date)
			if err != nil {
				return nil, err
			}
			dash.Trends = append(dash.Trends, trends...)
		}
	}

	s.cacheSet(ctx, key, dash, s.dashboardTTL())
	return dash, nil
}

// CampusSummary is one line on the admin dashboard.
type CampusSummary struct {
	Campus    model.Campus           `json:"campus"`
	Analytics *model.CampusAnalytics `json:"analytics,omitempty"`
}

// AdminDashboard is the platform-wide day view.
type AdminDashboard struct {
	Date     string                  `json:"date"`
	Overall  *model.OverallAnalytics `json:"overall,omitempty"`
	Campuses []CampusSummary         `json:"campuses"`
}

func (s *DashboardService) GetAdminDashboard(ctx context.Context, date string) (*AdminDashboard, error) {
	key := fmt.Sprintf("dash:admin:%s", date)
	var cached AdminDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	dash := &AdminDashboard{Date: date}
	if overall, err := s.AnalyticsRepo.GetOverall(date); err == nil {
		dash.Overall = overall
	}

	campuses, err := s.CampusRepo.List()
	if err != nil {
		return nil, err
	}
	for i := range campuses {
		summary := CampusSummary{Campus: campuses[i]}
		if analytics, err := s.AnalyticsRepo.GetCampus(campuses[i].ID, date); err == nil {
			summary.Analytics = analytics
		}
		dash.Campuses = append(dash.Campuses, summary)
	}

	s.cacheSet(ctx, key, dash, s.dashboardTTL())
	return dash, nil
}

// GradePerformance compares the classrooms of one grade.
type GradePerformance struct {
	Grade      *model.Grade           `json:"grade"`
	Date       string                 `json:"date"`
	Classrooms []ClassroomPerformance `json:"classrooms"`
}

type ClassroomPerformance struct {
	Classroom model.Classroom       `json:"classroom"`
	Analytics *model.ClassAnalytics `json:"analytics,omitempty"`
}

func (s *DashboardService) GetGradePerformance(ctx context.Context, actorID, gradeID uint, date string) (*GradePerformance, error) {
	grade, err := s.GradeRepo.FindByID(gradeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("grade %d", gradeID)
		}
		return nil, err
	}

	filter, err := s.Scope.Resolve(actorID)
	if err != nil {
		return nil, err
	}
	allowed, err := filter.AllowsGrade(gradeID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, util.Forbiddenf("grade %d is outside the caller's scope", gradeID)
	}

	key := fmt.Sprintf("dash:grade:%d:%d:%s", actorID, gradeID, date)
	var cached GradePerformance
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	classrooms, err := s.ClassroomRepo.ListByGrade(gradeID)
	if err != nil {
		return nil, err
	}
	perf := &GradePerformance{Grade: grade, Date: date}
	for i := range classrooms {
		entry := ClassroomPerformance{Classroom: classrooms[i]}
		if analytics, err := s.AnalyticsRepo.GetClass(classrooms[i].ID, date); err == nil {
			entry.Analytics = analytics
		}
		perf.Classrooms = append(perf.Classrooms, entry)
	}

	s.cacheSet(ctx, key, perf, s.dashboardTTL())
	return perf, nil
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank    int              `json:"rank"`
	Name    string           `json:"name"`
	TotalXP int              `json:"totalXp"`
	Stage   model.PlantStage `json:"stage"`
}

// GetLeaderboard ranks students by lifetime XP.
func (s *DashboardService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	key := fmt.Sprintf("dash:leaderboard:%d", limit)
	var cached []LeaderboardEntry
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	plants, err := s.PlantRepo.FindTopByXP(limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(plants))
	for i := range plants {
		identity, err := s.IdentityRepo.FindByID(plants[i].UserID)
		if err != nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Rank:    len(entries) + 1,
			Name:    identity.Name,
			TotalXP: plants[i].TotalXP,
			Stage:   plants[i].Stage,
		})
	}

	s.cacheSet(ctx, key, entries, s.overviewTTL())
	return entries, nil
}
