package repository

import (
	"english_edu_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type IdentityRepository struct {
	DB *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{DB: db}
}

func (r *IdentityRepository) Create(identity *model.Identity) error {
	return r.DB.Create(identity).Error
}

func (r *IdentityRepository) FindByID(id uint) (*model.Identity, error) {
	var identity model.Identity
	err := r.DB.First(&identity, id).Error
	return &identity, err
}

func (r *IdentityRepository) FindByUsername(username string) (*model.Identity, error) {
	var identity model.Identity
	err := r.DB.Where("username = ?", username).First(&identity).Error
	return &identity, err
}

func (r *IdentityRepository) FindByStudentID(studentID string) (*model.Identity, error) {
	var identity model.Identity
	err := r.DB.Where("student_id = ?", studentID).First(&identity).Error
	return &identity, err
}

func (r *IdentityRepository) FindByEmail(email string) (*model.Identity, error) {
	var identity model.Identity
	err := r.DB.Where("email = ?", email).First(&identity).Error
	return &identity, err
}

func (r *IdentityRepository) Update(identity *model.Identity) error {
	return r.DB.Save(identity).Error
}

func (r *IdentityRepository) UpdateLastSeen(userID uint) error {
	return r.DB.Model(&model.Identity{}).
		Where("id = ?", userID).
		Update("last_login", time.Now()).
		Error
}
