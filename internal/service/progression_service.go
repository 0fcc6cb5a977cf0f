package service

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

// ProgressionService derives per-user state that is not written directly
// by submissions: level/group unlocks, streaks, the virtual plant and the
// next-level pointer. All date math runs on user-local dates.
type ProgressionService struct {
	GroupRepo    *repository.GroupRepository
	LevelRepo    *repository.LevelRepository
	ProgressRepo *repository.ProgressRepository
	DailyRepo    *repository.DailyProgressRepository
	PlantRepo    *repository.PlantRepository
	TestRepo     *repository.TestAttemptRepository
	DB           *gorm.DB
}

func NewProgressionService(
	groupRepo *repository.GroupRepository,
	levelRepo *repository.LevelRepository,
	progressRepo *repository.ProgressRepository,
	dailyRepo *repository.DailyProgressRepository,
	plantRepo *repository.PlantRepository,
	testRepo *repository.TestAttemptRepository,
	db *gorm.DB,
) *ProgressionService {
	return &ProgressionService{
		GroupRepo:    groupRepo,
		LevelRepo:    levelRepo,
		ProgressRepo: progressRepo,
		DailyRepo:    dailyRepo,
		PlantRepo:    plantRepo,
		TestRepo:     testRepo,
		DB:           db,
	}
}

// CurrentStreak returns the length of the run of consecutive streak days
// ending at today, or at yesterday when today has no completion yet.
// dates must be ascending DateLayout strings.
func CurrentStreak(dates []string, today string) int {
	if len(dates) == 0 {
		return 0
	}
	day, err := time.Parse(model.DateLayout, today)
	if err != nil {
		return 0
	}
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		seen[d] = true
	}

	// A streak may end today or yesterday; anything older is broken.
	if !seen[today] {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for seen[day.Format(model.DateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// LongestStreak returns the longest run of consecutive streak days.
func LongestStreak(dates []string) int {
	longest, run := 0, 0
	var prev time.Time
	for i, d := range dates {
		day, err := time.Parse(model.DateLayout, d)
		if err != nil {
			continue
		}
		if i > 0 && day.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = day
	}
	return longest
}

// StageFor maps progress within a group onto a plant stage.
func StageFor(currentLevel, totalLevels int) model.PlantStage {
	if totalLevels <= 0 {
		return model.StageSeed
	}
	p := float64(currentLevel) / float64(totalLevels)
	switch {
	case p <= 0.2:
		return model.StageSeed
	case p <= 0.4:
		return model.StageSprout
	case p <= 0.6:
		return model.StageSapling
	case p <= 0.8:
		return model.StageTree
	default:
		return model.StageFruitTree
	}
}

// MissedDays counts full days between the last completion date and today.
func MissedDays(lastCompletion, today string) int {
	last, err1 := time.Parse(model.DateLayout, lastCompletion)
	now, err2 := time.Parse(model.DateLayout, today)
	if err1 != nil || err2 != nil {
		return 0
	}
	days := int(now.Sub(last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// WiltingState derives (is_wilting, health_delta) from the gap since the
// last completion. Health decays 5 points per missed day beyond the first.
func WiltingState(lastCompletion, today string) (bool, int) {
	missed := MissedDays(lastCompletion, today)
	if missed <= 0 {
		return false, 0
	}
	decay := 0
	if missed > 1 {
		decay = (missed - 1) * model.PlantDecayPerDay
	}
	return true, -decay
}

// gatingPredecessor returns the level number whose completion gates
// level n, or 0 when n is the first level. Test levels never block the
// following regular level, so the gate skips over them.
func gatingPredecessor(n int) int {
	if n <= 1 {
		return 0
	}
	if model.IsTestNumber(n - 1) {
		return n - 2
	}
	return n - 1
}

// IsLevelUnlocked reports whether the user may play the given level.
func (s *ProgressionService) IsLevelUnlocked(userID uint, level *model.Level) (bool, error) {
	unlocked, err := s.IsGroupUnlocked(userID, level.GroupID)
	if err != nil {
		return false, err
	}
	if !unlocked {
		return false, nil
	}

	pred := gatingPredecessor(level.LevelNumber)
	if pred == 0 {
		return true, nil
	}
	predLevel, err := s.LevelRepo.FindByGroupAndNumber(level.GroupID, pred)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return true, nil
		}
		return false, err
	}
	lp, err := s.ProgressRepo.GetLevelProgress(userID, predLevel.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return lp.IsCompleted, nil
}

// IsGroupUnlocked reports whether the user has entered the group. The
// starter group is always open; later groups depend on their unlock
// condition (previous group completed, a passing unlock-test attempt,
// or both).
func (s *ProgressionService) IsGroupUnlocked(userID, groupID uint) (bool, error) {
	group, err := s.GroupRepo.FindByID(groupID)
	if err != nil {
		return false, err
	}
	if group.GroupNumber == model.MinGroupNumber {
		return true, nil
	}

	if gp, err := s.ProgressRepo.GetGroupProgress(userID, groupID); err == nil && gp.IsUnlocked {
		return true, nil
	}

	ok, err := s.groupUnlockConditionMet(s.DB, userID, group)
	if err != nil || !ok {
		return false, err
	}

	// Persist the unlock so later checks are a single row read.
	if err := s.unlockGroup(s.DB, userID, group); err != nil {
		return false, err
	}
	return true, nil
}

// groupUnlockConditionMet evaluates a group's unlock gate through db so
// that callers inside a transaction see their own progress writes.
func (s *ProgressionService) groupUnlockConditionMet(db *gorm.DB, userID uint, group *model.Group) (bool, error) {
	if group.RequiresPreviousGroup() {
		prev, err := s.GroupRepo.WithTx(db).FindByNumber(group.GroupNumber - 1)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				// Previous group not authored yet: stay locked.
				return false, nil
			}
			return false, err
		}
		gp, err := s.ProgressRepo.WithTx(db).GetGroupProgress(userID, prev.ID)
		if err != nil || !gp.IsCompleted {
			if err != nil && err != gorm.ErrRecordNotFound {
				return false, err
			}
			return false, nil
		}
	}
	if group.RequiresUnlockTest() {
		test, err := s.TestRepo.WithTx(db).FindUnlockTest(group.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				// Gate configured but no test authored yet: stay locked.
				return false, nil
			}
			return false, err
		}
		passed, err := s.TestRepo.WithTx(db).HasPassed(userID, test.ID)
		if err != nil || !passed {
			return false, err
		}
	}
	return true, nil
}

func (s *ProgressionService) unlockGroup(tx *gorm.DB, userID uint, group *model.Group) error {
	now := time.Now()
	var gp model.GroupProgress
	err := tx.Where("user_id = ? AND group_id = ?", userID, group.ID).First(&gp).Error
	if err == gorm.ErrRecordNotFound {
		gp = model.GroupProgress{
			UserID:      userID,
			GroupID:     group.ID,
			GroupNumber: group.GroupNumber,
			IsUnlocked:  true,
			UnlockedAt:  &now,
		}
		return tx.Create(&gp).Error
	}
	if err != nil {
		return err
	}
	if gp.IsUnlocked {
		return nil
	}
	gp.IsUnlocked = true
	gp.UnlockedAt = &now
	return tx.Save(&gp).Error
}

// NextLevelPointer is the smallest (group_number, level_number) that is
// unlocked and not completed.
type NextLevelPointer struct {
	GroupNumber int  `json:"groupNumber"`
	LevelNumber int  `json:"levelNumber"`
	LevelID     uint `json:"levelId"`
}

func (s *ProgressionService) NextLevel(userID uint) (*NextLevelPointer, error) {
	groups, err := s.GroupRepo.List()
	if err != nil {
		return nil, err
	}
	completed, err := s.ProgressRepo.ListCompletedLevelIDs(userID)
	if err != nil {
		return nil, err
	}
	done := make(map[uint]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	for i := range groups {
		group := &groups[i]
		unlocked, err := s.IsGroupUnlocked(userID, group.ID)
		if err != nil {
			return nil, err
		}
		if !unlocked {
			continue
		}
		levels, err := s.LevelRepo.ListByGroup(group.ID)
		if err != nil {
			return nil, err
		}
		for j := range levels {
			level := &levels[j]
			if done[level.ID] {
				continue
			}
			ok, err := s.IsLevelUnlocked(userID, level)
			if err != nil {
				return nil, err
			}
			if ok {
				return &NextLevelPointer{
					GroupNumber: group.GroupNumber,
					LevelNumber: level.LevelNumber,
					LevelID:     level.ID,
				}, nil
			}
		}
	}
	return nil, nil
}

// AfterLevelCompleted runs the derived-state updates that follow a
// passing completion: auto-unlock of the next group, streak recompute
// and plant refresh. It is called inside the completion transaction, so
// every read goes through tx. A non-nil StreakBroken is returned when
// the completion landed after a gap, for the caller to dispatch.
func (s *ProgressionService) AfterLevelCompleted(tx *gorm.DB, userID uint, level *model.Level, today string) (*StreakBroken, error) {
	// Next-group auto-unlock when this completion finished the group.
	var gp model.GroupProgress
	if err := tx.Where("user_id = ? AND group_id = ?", userID, level.GroupID).First(&gp).Error; err == nil && gp.IsCompleted {
		if next, err := s.GroupRepo.WithTx(tx).FindByNumber(level.GroupNumber + 1); err == nil {
			met, err := s.groupUnlockConditionMet(tx, userID, next)
			if err != nil {
				return nil, err
			}
			if met {
				if err := s.unlockGroup(tx, userID, next); err != nil {
					return nil, err
				}
			}
		}
	}

	return s.refreshPlant(tx, userID, level, today)
}

func (s *ProgressionService) refreshPlant(tx *gorm.DB, userID uint, level *model.Level, today string) (*StreakBroken, error) {
	plant, err := s.PlantRepo.WithTx(tx).GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	dates, err := s.DailyRepo.WithTx(tx).CompletionDates(userID)
	if err != nil {
		return nil, err
	}

	var broken *StreakBroken
	prior := CurrentStreak(dates, today)
	if plant.DailyCareStreak > 0 && prior <= 1 && plant.DailyCareStreak > prior {
		broken = &StreakBroken{
			UserID:      userID,
			Date:        today,
			PriorStreak: plant.DailyCareStreak,
		}
	}

	completedInGroup, err := s.ProgressRepo.WithTx(tx).CountCompletedInGroup(userID, level.GroupID)
	if err != nil {
		return nil, err
	}
	group, err := s.GroupRepo.WithTx(tx).FindByID(level.GroupID)
	if err != nil {
		return nil, err
	}

	totalXP, err := s.ProgressRepo.WithTx(tx).TotalXP(userID)
	if err != nil {
		return nil, err
	}
	var totalCompleted int64
	if err := tx.Model(&model.LevelProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&totalCompleted).Error; err != nil {
		return nil, err
	}

	plant.Stage = StageFor(int(completedInGroup), group.TotalLevels)
	plant.TotalXP = totalXP
	plant.LevelsCompleted = int(totalCompleted)
	plant.DailyCareStreak = CurrentStreak(dates, today)
	if longest := LongestStreak(dates); longest > plant.MaxCareStreak {
		plant.MaxCareStreak = longest
	}
	// Completing a level counts as caring for the plant.
	plant.IsWilting = false
	plant.LastCareDate = &today

	if err := tx.Save(plant).Error; err != nil {
		return nil, err
	}
	return broken, nil
}

// RefreshWilting applies the decay rules on read paths: missing a full
// day wilts the plant, and each further missed day costs health.
func (s *ProgressionService) RefreshWilting(plant *model.UserPlant, today string) {
	if plant.LastCareDate == nil {
		return
	}
	wilting, delta := WiltingState(*plant.LastCareDate, today)
	if !wilting {
		return
	}
	plant.IsWilting = true
	plant.HealthPoints += delta
	if plant.HealthPoints < 0 {
		plant.HealthPoints = 0
	}
}

// CarePlant restores health and clears wilting; usable once per day.
func (s *ProgressionService) CarePlant(userID uint, today string) (*model.UserPlant, error) {
	plant, err := s.PlantRepo.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	s.RefreshWilting(plant, today)
	if plant.LastCareDate != nil && *plant.LastCareDate == today && !plant.IsWilting {
		return nil, util.Conflictf("plant already cared for on %s", today)
	}
	plant.HealthPoints += model.PlantCareRestore
	if plant.HealthPoints > model.PlantMaxHealth {
		plant.HealthPoints = model.PlantMaxHealth
	}
	plant.IsWilting = false
	plant.LastCareDate = &today
	if err := s.PlantRepo.Update(plant); err != nil {
		return nil, err
	}
	return plant, nil
}

// StreakSummary bundles the gamification counters for overview reads.
type StreakSummary struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

func (s *ProgressionService) Streaks(userID uint, today string) (StreakSummary, error) {
	dates, err := s.DailyRepo.CompletionDates(userID)
	if err != nil {
		return StreakSummary{}, err
	}
	return StreakSummary{
		Current: CurrentStreak(dates, today),
		Longest: LongestStreak(dates),
	}, nil
}
