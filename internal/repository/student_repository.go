package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

type StudentRepository struct {
	DB *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{DB: db}
}

func (r *StudentRepository) Create(student *model.Student) error {
	return r.DB.Create(student).Error
}

func (r *StudentRepository) FindByID(id uint) (*model.Student, error) {
	var student model.Student
	err := r.DB.First(&student, id).Error
	return &student, err
}

func (r *StudentRepository) FindByStudentID(studentID string) (*model.Student, error) {
	var student model.Student
	err := r.DB.Where("student_id = ?", studentID).First(&student).Error
	return &student, err
}

// MaxSerial returns the highest serial issued in a (campus, grade, shift)
// scope, 0 when none. Soft-deleted rows still count so that serials are
// never reused.
func (r *StudentRepository) MaxSerial(campusID uint, gradeLabel string, shift model.Shift) (int, error) {
	var max int
	err := r.DB.Unscoped().Model(&model.Student{}).
		Where("campus_id = ? AND grade_label = ? AND shift = ?", campusID, gradeLabel, shift).
		Select("COALESCE(MAX(serial), 0)").
		Scan(&max).Error
	return max, err
}

func (r *StudentRepository) ListByClassroom(classroomID uint) ([]model.Student, error) {
	var students []model.Student
	err := r.DB.Where("classroom_id = ?", classroomID).Order("student_id ASC").Find(&students).Error
	return students, err
}

func (r *StudentRepository) Update(student *model.Student) error {
	return r.DB.Save(student).Error
}

type StaffRepository struct {
	DB *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{DB: db}
}

func (r *StaffRepository) Create(staff *model.Staff) error {
	return r.DB.Create(staff).Error
}

func (r *StaffRepository) FindByID(id uint) (*model.Staff, error) {
	var staff model.Staff
	err := r.DB.First(&staff, id).Error
	return &staff, err
}

func (r *StaffRepository) FindByEmail(email string) (*model.Staff, error) {
	var staff model.Staff
	err := r.DB.Where("email = ?", email).First(&staff).Error
	return &staff, err
}

func (r *StaffRepository) MaxTeacherSerial(campusID uint, shift model.Shift) (int, error) {
	var max int
	err := r.DB.Unscoped().Model(&model.Staff{}).
		Where("kind = ? AND campus_id = ? AND shift = ?", model.StaffTeacher, campusID, shift).
		Select("COALESCE(MAX(serial), 0)").
		Scan(&max).Error
	return max, err
}

func (r *StaffRepository) MaxCoordinatorSerial() (int, error) {
	var max int
	err := r.DB.Unscoped().Model(&model.Staff{}).
		Where("kind = ?", model.StaffCoordinator).
		Select("COALESCE(MAX(serial), 0)").
		Scan(&max).Error
	return max, err
}

func (r *StaffRepository) ListTeachersByCoordinator(coordinatorID uint) ([]model.Staff, error) {
	var teachers []model.Staff
	err := r.DB.Where("kind = ? AND coordinator_id = ?", model.StaffTeacher, coordinatorID).
		Find(&teachers).Error
	return teachers, err
}

func (r *StaffRepository) Update(staff *model.Staff) error {
	return r.DB.Save(staff).Error
}
