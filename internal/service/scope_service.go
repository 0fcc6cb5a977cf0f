package service

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"

	"gorm.io/gorm"
)

// ScopeService resolves an actor into the slice of the student population
// they may see. The result is a filter other services compose into their
// queries, so visibility rules live in exactly one place: admins see
// everything, coordinators see the classrooms of the teachers they
// manage, teachers see their own classroom, students see themselves.
type ScopeService struct {
	IdentityRepo  *repository.IdentityRepository
	StaffRepo     *repository.StaffRepository
	StudentRepo   *repository.StudentRepository
	ClassroomRepo *repository.ClassroomRepository
	DB            *gorm.DB
}

func NewScopeService(
	identityRepo *repository.IdentityRepository,
	staffRepo *repository.StaffRepository,
	studentRepo *repository.StudentRepository,
	classroomRepo *repository.ClassroomRepository,
	db *gorm.DB,
) *ScopeService {
	return &ScopeService{
		IdentityRepo:  identityRepo,
		StaffRepo:     staffRepo,
		StudentRepo:   studentRepo,
		ClassroomRepo: classroomRepo,
		DB:            db,
	}
}

// ScopeFilter restricts queries over the students table.
type ScopeFilter struct {
	role          model.UserRole
	db            *gorm.DB
	coordinatorID uint  // set for coordinators
	classroomID   *uint // set for teachers; nil means no classroom assigned
	studentPK     uint  // set for students
}

// Role returns the actor role the filter was resolved for.
func (f *ScopeFilter) Role() model.UserRole {
	return f.role
}

// ClassroomID returns the teacher's classroom, nil otherwise.
func (f *ScopeFilter) ClassroomID() *uint {
	if f.role == model.RoleTeacher {
		return f.classroomID
	}
	return nil
}

// CoordinatorID returns the coordinator's staff ID, zero otherwise.
func (f *ScopeFilter) CoordinatorID() uint {
	if f.role == model.RoleCoordinator {
		return f.coordinatorID
	}
	return 0
}

// Students narrows a query over the students table to the actor's scope.
// Usable as a gorm scope: db.Scopes(filter.Students).
func (f *ScopeFilter) Students(q *gorm.DB) *gorm.DB {
	switch f.role {
	case model.RoleAdmin:
		return q
	case model.RoleCoordinator:
		teacherIDs := f.db.Model(&model.Staff{}).
			Select("id").
			Where("kind = ? AND coordinator_id = ?", model.StaffTeacher, f.coordinatorID)
		classroomIDs := f.db.Model(&model.Classroom{}).
			Select("id").
			Where("class_teacher_id IN (?)", teacherIDs)
		return q.Where("classroom_id IN (?)", classroomIDs)
	case model.RoleTeacher:
		if f.classroomID == nil {
			return q.Where("1 = 0")
		}
		return q.Where("classroom_id = ?", *f.classroomID)
	case model.RoleStudent:
		return q.Where("id = ?", f.studentPK)
	}
	return q.Where("1 = 0")
}

// AllowsGrade reports whether the actor may read grade-wide analytics:
// admins always, coordinators when one of their teachers runs a
// classroom in the grade, teachers for their own classroom's grade.
func (f *ScopeFilter) AllowsGrade(gradeID uint) (bool, error) {
	switch f.role {
	case model.RoleAdmin:
		return true, nil
	case model.RoleCoordinator:
		teacherIDs := f.db.Model(&model.Staff{}).
			Select("id").
			Where("kind = ? AND coordinator_id = ?", model.StaffTeacher, f.coordinatorID)
		var count int64
		err := f.db.Model(&model.Classroom{}).
			Where("grade_id = ? AND class_teacher_id IN (?)", gradeID, teacherIDs).
			Count(&count).Error
		return count > 0, err
	case model.RoleTeacher:
		if f.classroomID == nil {
			return false, nil
		}
		var classroom model.Classroom
		if err := f.db.First(&classroom, *f.classroomID).Error; err != nil {
			return false, err
		}
		return classroom.GradeID == gradeID, nil
	}
	return false, nil
}

// Resolve builds the scope filter for an authenticated actor.
func (s *ScopeService) Resolve(userID uint) (*ScopeFilter, error) {
	identity, err := s.IdentityRepo.FindByID(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("identity %d", userID)
		}
		return nil, err
	}

	filter := &ScopeFilter{role: identity.Role, db: s.DB}
	switch identity.Role {
	case model.RoleAdmin:
		return filter, nil

	case model.RoleCoordinator:
		if identity.Email == nil {
			return nil, util.Forbiddenf("coordinator identity %d has no staff record", userID)
		}
		staff, err := s.StaffRepo.FindByEmail(*identity.Email)
		if err != nil {
			return nil, util.Forbiddenf("coordinator identity %d has no staff record", userID)
		}
		filter.coordinatorID = staff.ID
		return filter, nil

	case model.RoleTeacher:
		if identity.Email == nil {
			return nil, util.Forbiddenf("teacher identity %d has no staff record", userID)
		}
		staff, err := s.StaffRepo.FindByEmail(*identity.Email)
		if err != nil {
			return nil, util.Forbiddenf("teacher identity %d has no staff record", userID)
		}
		classroom, err := s.ClassroomRepo.FindByClassTeacher(staff.ID)
		if err == nil {
			id := classroom.ID
			filter.classroomID = &id
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		return filter, nil

	case model.RoleStudent:
		if identity.StudentID == nil {
			return nil, util.Forbiddenf("student identity %d has no student record", userID)
		}
		student, err := s.StudentRepo.FindByStudentID(*identity.StudentID)
		if err != nil {
			return nil, util.Forbiddenf("student identity %d has no student record", userID)
		}
		filter.studentPK = student.ID
		return filter, nil
	}
	return nil, util.Forbiddenf("unknown role %q", identity.Role)
}

// ListStudents returns the students visible to the filter.
func (s *ScopeService) ListStudents(filter *ScopeFilter) ([]model.Student, error) {
	var students []model.Student
	err := s.DB.Model(&model.Student{}).
		Where("active = ?", true).
		Scopes(filter.Students).
		Order("student_id ASC").
		Find(&students).Error
	return students, err
}

// ContainsUser reports whether the target identity falls inside the
// actor's scope. Non-student targets are never in scope.
func (s *ScopeService) ContainsUser(filter *ScopeFilter, targetUserID uint) (bool, error) {
	if filter.role == model.RoleAdmin {
		return true, nil
	}
	identity, err := s.IdentityRepo.FindByID(targetUserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if identity.Role != model.RoleStudent || identity.StudentID == nil {
		return false, nil
	}
	var count int64
	err = s.DB.Model(&model.Student{}).
		Where("student_id = ?", *identity.StudentID).
		Scopes(filter.Students).
		Count(&count).Error
	return count > 0, err
}
