package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

type TestAttemptRepository struct {
	DB *gorm.DB
}

func NewTestAttemptRepository(db *gorm.DB) *TestAttemptRepository {
	return &TestAttemptRepository{DB: db}
}

// WithTx returns a copy bound to tx.
func (r *TestAttemptRepository) WithTx(tx *gorm.DB) *TestAttemptRepository {
	return &TestAttemptRepository{DB: tx}
}

func (r *TestAttemptRepository) Create(attempt *model.TestAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *TestAttemptRepository) FindUnlockTest(groupID uint) (*model.GroupUnlockTest, error) {
	var test model.GroupUnlockTest
	err := r.DB.Where("group_id = ?", groupID).First(&test).Error
	return &test, err
}

func (r *TestAttemptRepository) ListTestQuestions(testID uint) ([]model.UnlockTestQuestion, error) {
	var questions []model.UnlockTestQuestion
	err := r.DB.Where("test_id = ?", testID).Order("question_order ASC").Find(&questions).Error
	return questions, err
}

func (r *TestAttemptRepository) HasPassed(userID, testID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.TestAttempt{}).
		Where("user_id = ? AND test_id = ? AND passed = ?", userID, testID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *TestAttemptRepository) ListByUser(userID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.DB.Where("user_id = ?", userID).Order("submitted_at DESC").Find(&attempts).Error
	return attempts, err
}
