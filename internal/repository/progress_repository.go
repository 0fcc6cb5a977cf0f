package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// WithTx returns a copy bound to tx, for reads that must observe an
// open transaction's writes.
func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

func (r *ProgressRepository) GetQuestionProgress(userID, questionID uint) (*model.QuestionProgress, error) {
	var qp model.QuestionProgress
	err := r.DB.Where("user_id = ? AND question_id = ?", userID, questionID).First(&qp).Error
	return &qp, err
}

func (r *ProgressRepository) ListQuestionProgressByLevel(userID, levelID uint) ([]model.QuestionProgress, error) {
	var rows []model.QuestionProgress
	err := r.DB.Where("user_id = ? AND level_id = ?", userID, levelID).Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) GetLevelProgress(userID, levelID uint) (*model.LevelProgress, error) {
	var lp model.LevelProgress
	err := r.DB.Where("user_id = ? AND level_id = ?", userID, levelID).First(&lp).Error
	return &lp, err
}

// ListCompletedLevelIDs returns the IDs of levels the user has passed.
func (r *ProgressRepository) ListCompletedLevelIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.LevelProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Pluck("level_id", &ids).Error
	return ids, err
}

func (r *ProgressRepository) CountCompletedInGroup(userID, groupID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LevelProgress{}).
		Joins("JOIN levels ON levels.id = level_progress.level_id").
		Where("level_progress.user_id = ? AND level_progress.is_completed = ? AND levels.group_id = ?",
			userID, true, groupID).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) GetGroupProgress(userID, groupID uint) (*model.GroupProgress, error) {
	var gp model.GroupProgress
	err := r.DB.Where("user_id = ? AND group_id = ?", userID, groupID).First(&gp).Error
	return &gp, err
}

func (r *ProgressRepository) ListGroupProgress(userID uint) ([]model.GroupProgress, error) {
	var rows []model.GroupProgress
	err := r.DB.Where("user_id = ?", userID).Order("group_number ASC").Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) TotalXP(userID uint) (int, error) {
	var questionXP, levelXP, testXP int
	if err := r.DB.Model(&model.QuestionProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_earned), 0)").Scan(&questionXP).Error; err != nil {
		return 0, err
	}
	if err := r.DB.Model(&model.LevelProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_earned), 0)").Scan(&levelXP).Error; err != nil {
		return 0, err
	}
	if err := r.DB.Model(&model.TestAttempt{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_earned), 0)").Scan(&testXP).Error; err != nil {
		return 0, err
	}
	return questionXP + levelXP + testXP, nil
}

type DailyProgressRepository struct {
	DB *gorm.DB
}

func NewDailyProgressRepository(db *gorm.DB) *DailyProgressRepository {
	return &DailyProgressRepository{DB: db}
}

// WithTx returns a copy bound to tx.
func (r *DailyProgressRepository) WithTx(tx *gorm.DB) *DailyProgressRepository {
	return &DailyProgressRepository{DB: tx}
}

func (r *DailyProgressRepository) Get(userID uint, date string) (*model.DailyProgress, error) {
	var dp model.DailyProgress
	err := r.DB.Where("user_id = ? AND date = ?", userID, date).First(&dp).Error
	return &dp, err
}

// CompletionDates returns the local dates on which the user completed at
// least one level, ascending. These are the streak days.
func (r *DailyProgressRepository) CompletionDates(userID uint) ([]string, error) {
	var dates []string
	err := r.DB.Model(&model.DailyProgress{}).
		Where("user_id = ? AND levels_completed > 0", userID).
		Order("date ASC").
		Pluck("date", &dates).Error
	return dates, err
}

// ListAllInRange returns every user's daily rows for a date range. The
// rollup rebuild walks these to recompute the derived tables.
func (r *DailyProgressRepository) ListAllInRange(from, to string) ([]model.DailyProgress, error) {
	var rows []model.DailyProgress
	err := r.DB.Where("date BETWEEN ? AND ?", from, to).
		Order("date ASC, user_id ASC").Find(&rows).Error
	return rows, err
}

func (r *DailyProgressRepository) ListRange(userID uint, from, to string) ([]model.DailyProgress, error) {
	var rows []model.DailyProgress
	err := r.DB.Where("user_id = ? AND date BETWEEN ? AND ?", userID, from, to).
		Order("date ASC").Find(&rows).Error
	return rows, err
}
