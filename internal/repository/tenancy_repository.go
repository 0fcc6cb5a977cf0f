package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

type CampusRepository struct {
	DB *gorm.DB
}

func NewCampusRepository(db *gorm.DB) *CampusRepository {
	return &CampusRepository{DB: db}
}

func (r *CampusRepository) Create(campus *model.Campus) error {
	return r.DB.Create(campus).Error
}

func (r *CampusRepository) FindByID(id uint) (*model.Campus, error) {
	var campus model.Campus
	err := r.DB.First(&campus, id).Error
	return &campus, err
}

func (r *CampusRepository) FindByCode(code string) (*model.Campus, error) {
	var campus model.Campus
	err := r.DB.Where("code = ?", code).First(&campus).Error
	return &campus, err
}

func (r *CampusRepository) List() ([]model.Campus, error) {
	var campuses []model.Campus
	err := r.DB.Order("code ASC").Find(&campuses).Error
	return campuses, err
}

func (r *CampusRepository) Update(campus *model.Campus) error {
	return r.DB.Save(campus).Error
}

type GradeRepository struct {
	DB *gorm.DB
}

func NewGradeRepository(db *gorm.DB) *GradeRepository {
	return &GradeRepository{DB: db}
}

func (r *GradeRepository) Create(grade *model.Grade) error {
	return r.DB.Create(grade).Error
}

func (r *GradeRepository) FindByID(id uint) (*model.Grade, error) {
	var grade model.Grade
	err := r.DB.First(&grade, id).Error
	return &grade, err
}

func (r *GradeRepository) Find(campusID uint, label string, shift model.Shift) (*model.Grade, error) {
	var grade model.Grade
	err := r.DB.Where("campus_id = ? AND label = ? AND shift = ?", campusID, label, shift).
		First(&grade).Error
	return &grade, err
}

func (r *GradeRepository) ListByCampus(campusID uint) ([]model.Grade, error) {
	var grades []model.Grade
	err := r.DB.Where("campus_id = ?", campusID).Order("label ASC").Find(&grades).Error
	return grades, err
}

func (r *GradeRepository) Update(grade *model.Grade) error {
	return r.DB.Save(grade).Error
}

type ClassroomRepository struct {
	DB *gorm.DB
}

func NewClassroomRepository(db *gorm.DB) *ClassroomRepository {
	return &ClassroomRepository{DB: db}
}

func (r *ClassroomRepository) Create(classroom *model.Classroom) error {
	return r.DB.Create(classroom).Error
}

func (r *ClassroomRepository) FindByID(id uint) (*model.Classroom, error) {
	var classroom model.Classroom
	err := r.DB.First(&classroom, id).Error
	return &classroom, err
}

func (r *ClassroomRepository) FindByClassTeacher(teacherID uint) (*model.Classroom, error) {
	var classroom model.Classroom
	err := r.DB.Where("class_teacher_id = ?", teacherID).First(&classroom).Error
	return &classroom, err
}

func (r *ClassroomRepository) ListByGrade(gradeID uint) ([]model.Classroom, error) {
	var classrooms []model.Classroom
	err := r.DB.Where("grade_id = ?", gradeID).Order("section ASC").Find(&classrooms).Error
	return classrooms, err
}

func (r *ClassroomRepository) Update(classroom *model.Classroom) error {
	return r.DB.Save(classroom).Error
}
