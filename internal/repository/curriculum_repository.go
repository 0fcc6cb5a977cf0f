package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

type GroupRepository struct {
	DB *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{DB: db}
}

// WithTx returns a copy bound to tx, for reads that must observe an
// open transaction's writes.
func (r *GroupRepository) WithTx(tx *gorm.DB) *GroupRepository {
	return &GroupRepository{DB: tx}
}

func (r *GroupRepository) List() ([]model.Group, error) {
	var groups []model.Group
	err := r.DB.Order("group_number ASC").Find(&groups).Error
	return groups, err
}

func (r *GroupRepository) FindByID(id uint) (*model.Group, error) {
	var group model.Group
	err := r.DB.First(&group, id).Error
	return &group, err
}

func (r *GroupRepository) FindByNumber(groupNumber int) (*model.Group, error) {
	var group model.Group
	err := r.DB.Where("group_number = ?", groupNumber).First(&group).Error
	return &group, err
}

type LevelRepository struct {
	DB *gorm.DB
}

func NewLevelRepository(db *gorm.DB) *LevelRepository {
	return &LevelRepository{DB: db}
}

func (r *LevelRepository) FindByID(id uint) (*model.Level, error) {
	var level model.Level
	err := r.DB.First(&level, id).Error
	return &level, err
}

func (r *LevelRepository) ListByGroup(groupID uint) ([]model.Level, error) {
	var levels []model.Level
	err := r.DB.Where("group_id = ? AND active = ?", groupID, true).
		Order("level_number ASC").Find(&levels).Error
	return levels, err
}

func (r *LevelRepository) FindByGroupAndNumber(groupID uint, levelNumber int) (*model.Level, error) {
	var level model.Level
	err := r.DB.Where("group_id = ? AND level_number = ?", groupID, levelNumber).
		First(&level).Error
	return &level, err
}

// CountActive returns the number of playable levels in the curriculum.
func (r *LevelRepository) CountActive() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Level{}).Where("active = ?", true).Count(&count).Error
	return count, err
}

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	err := r.DB.First(&question, id).Error
	return &question, err
}

func (r *QuestionRepository) ListByLevel(levelID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("level_id = ? AND active = ?", levelID, true).
		Order("question_order ASC").Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) CountByLevel(levelID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Where("level_id = ? AND active = ?", levelID, true).
		Count(&count).Error
	return count, err
}
