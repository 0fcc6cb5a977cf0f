package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// IdentityService owns the school hierarchy and the issuing of permanent
// human-readable IDs. Serials are monotonic per scope and never reused,
// soft-deleted rows included.
type IdentityService struct {
	IdentityRepo  *repository.IdentityRepository
	CampusRepo    *repository.CampusRepository
	GradeRepo     *repository.GradeRepository
	ClassroomRepo *repository.ClassroomRepository
	StudentRepo   *repository.StudentRepository
	StaffRepo     *repository.StaffRepository
	DB            *gorm.DB

	mu      sync.Mutex
	serials map[string]*sync.Mutex
}

func NewIdentityService(
	identityRepo *repository.IdentityRepository,
	campusRepo *repository.CampusRepository,
	gradeRepo *repository.GradeRepository,
	classroomRepo *repository.ClassroomRepository,
	studentRepo *repository.StudentRepository,
	staffRepo *repository.StaffRepository,
	db *gorm.DB,
) *IdentityService {
	return &IdentityService{
		IdentityRepo:  identityRepo,
		CampusRepo:    campusRepo,
		GradeRepo:     gradeRepo,
		ClassroomRepo: classroomRepo,
		StudentRepo:   studentRepo,
		StaffRepo:     staffRepo,
		DB:            db,
		serials:       make(map[string]*sync.Mutex),
	}
}

// scopeLock serializes serial issuance within one scope so that two
// concurrent creates in the same (campus, grade, shift) cannot read the
// same max serial. The unique index on the issued ID is the backstop for
// multi-instance deployments.
func (s *IdentityService) scopeLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.serials[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.serials[key] = m
	return m
}

// GradeCode maps a grade label onto the short code used inside IDs:
// Nursery -> NUR, KG-1 -> KG1, KG-2 -> KG2, Grade 7 -> G07.
func GradeCode(label string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(label), ""))
	compact = strings.ReplaceAll(compact, "-", "")
	switch {
	case strings.HasPrefix(compact, "NUR"):
		return "NUR"
	case compact == "KG1" || compact == "KINDERGARTEN1":
		return "KG1"
	case compact == "KG2" || compact == "KINDERGARTEN2":
		return "KG2"
	}
	digits := strings.TrimFunc(compact, func(r rune) bool { return r < '0' || r > '9' })
	if n, err := strconv.Atoi(digits); err == nil && n > 0 {
		return fmt.Sprintf("G%02d", n)
	}
	return compact
}

// FormatStudentID builds <campus>-<M|A>-<grade>-<serial>, e.g. C01-M-G03-0042.
func FormatStudentID(campusCode string, shift model.Shift, gradeLabel string, serial int) string {
	return fmt.Sprintf("%s-%s-%s-%04d", campusCode, model.ShiftCode(shift), GradeCode(gradeLabel), serial)
}

// FormatTeacherID builds <campus>-<M|A>-T-<serial>, e.g. C01-A-T-007.
func FormatTeacherID(campusCode string, shift model.Shift, serial int) string {
	return fmt.Sprintf("%s-%s-T-%03d", campusCode, model.ShiftCode(shift), serial)
}

// FormatCoordinatorID builds EC-<serial>; coordinators are campus-independent.
func FormatCoordinatorID(serial int) string {
	return fmt.Sprintf("EC-%03d", serial)
}

// CreateCampusInput carries the admin-facing campus fields.
type CreateCampusInput struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (s *IdentityService) CreateCampus(in CreateCampusInput) (*model.Campus, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return nil, util.Invalidf("campus code is required")
	}
	campus := &model.Campus{Code: code, Name: in.Name, Status: model.CampusActive}
	if err := s.CampusRepo.Create(campus); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.Duplicatef("campus code %s", code)
		}
		return nil, err
	}
	return campus, nil
}

func (s *IdentityService) ListCampuses() ([]model.Campus, error) {
	return s.CampusRepo.List()
}

func (s *IdentityService) SetCampusStatus(campusID uint, status model.CampusStatus) (*model.Campus, error) {
	switch status {
	case model.CampusActive, model.CampusInactive, model.CampusClosed:
	default:
		return nil, util.Invalidf("unknown campus status %q", status)
	}
	campus, err := s.CampusRepo.FindByID(campusID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("campus %d", campusID)
		}
		return nil, err
	}
	campus.Status = status
	if err := s.CampusRepo.Update(campus); err != nil {
		return nil, err
	}
	return campus, nil
}

// CreateGradeInput creates a (campus, label, shift) grade.
type CreateGradeInput struct {
	CampusID uint        `json:"campusId" binding:"required"`
	Label    string      `json:"label" binding:"required"`
	Shift    model.Shift `json:"shift" binding:"required"`
}

func (s *IdentityService) CreateGrade(in CreateGradeInput) (*model.Grade, error) {
	if in.Shift != model.ShiftMorning && in.Shift != model.ShiftAfternoon {
		return nil, util.Invalidf("unknown shift %q", in.Shift)
	}
	if _, err := s.CampusRepo.FindByID(in.CampusID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.TenancyMissingf("campus %d does not exist", in.CampusID)
		}
		return nil, err
	}
	grade := &model.Grade{CampusID: in.CampusID, Label: strings.TrimSpace(in.Label), Shift: in.Shift}
	if err := s.GradeRepo.Create(grade); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.Duplicatef("grade %s (%s) in campus %d", in.Label, in.Shift, in.CampusID)
		}
		return nil, err
	}
	return grade, nil
}

// CreateClassroomInput creates a (grade, section) classroom.
type CreateClassroomInput struct {
	GradeID        uint   `json:"gradeId" binding:"required"`
	Section        string `json:"section" binding:"required"`
	ClassTeacherID *uint  `json:"classTeacherId"`
}

func (s *IdentityService) CreateClassroom(in CreateClassroomInput) (*model.Classroom, error) {
	if _, err := s.GradeRepo.FindByID(in.GradeID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.TenancyMissingf("grade %d does not exist", in.GradeID)
		}
		return nil, err
	}
	classroom := &model.Classroom{
		GradeID:        in.GradeID,
		Section:        strings.ToUpper(strings.TrimSpace(in.Section)),
		ClassTeacherID: in.ClassTeacherID,
	}
	if err := s.ClassroomRepo.Create(classroom); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.Duplicatef("classroom section %s or teacher already assigned", in.Section)
		}
		return nil, err
	}
	return classroom, nil
}

// AssignClassTeacher moves a classroom to a teacher. The unique index on
// class_teacher_id enforces one classroom per teacher.
func (s *IdentityService) AssignClassTeacher(classroomID, teacherID uint) (*model.Classroom, error) {
	staff, err := s.StaffRepo.FindByID(teacherID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("teacher %d", teacherID)
		}
		return nil, err
	}
	if staff.Kind != model.StaffTeacher {
		return nil, util.Invalidf("staff %s is not a teacher", staff.StaffID)
	}
	classroom, err := s.ClassroomRepo.FindByID(classroomID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("classroom %d", classroomID)
		}
		return nil, err
	}
	classroom.ClassTeacherID = &teacherID
	if err := s.ClassroomRepo.Update(classroom); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.Conflictf("teacher %s already runs a classroom", staff.StaffID)
		}
		return nil, err
	}
	return classroom, nil
}

// CreateStudentInput enrolls one student.
type CreateStudentInput struct {
	Name        string      `json:"name" binding:"required"`
	FatherName  string      `json:"fatherName"`
	CampusID    uint        `json:"campusId" binding:"required"`
	GradeLabel  string      `json:"gradeLabel" binding:"required"`
	Shift       model.Shift `json:"shift" binding:"required"`
	ClassroomID *uint       `json:"classroomId"`
}

// CreateStudent issues the next serial in the (campus, grade, shift)
// scope, creates the student and mirrors a login identity. On a unique
// collision from a racing instance the serial read is retried once.
func (s *IdentityService) CreateStudent(in CreateStudentInput) (*model.Student, error) {
	campus, err := s.CampusRepo.FindByID(in.CampusID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.TenancyMissingf("campus %d does not exist", in.CampusID)
		}
		return nil, err
	}
	if _, err := s.GradeRepo.Find(in.CampusID, in.GradeLabel, in.Shift); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.TenancyMissingf("grade %q (%s) does not exist in campus %s", in.GradeLabel, in.Shift, campus.Code)
		}
		return nil, err
	}
	if in.ClassroomID != nil {
		if _, err := s.ClassroomRepo.FindByID(*in.ClassroomID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, util.TenancyMissingf("classroom %d does not exist", *in.ClassroomID)
			}
			return nil, err
		}
	}

	lock := s.scopeLock(fmt.Sprintf("student:%d:%s:%s", in.CampusID, GradeCode(in.GradeLabel), in.Shift))
	lock.Lock()
	defer lock.Unlock()

	var student *model.Student
	for attempt := 0; attempt < 2; attempt++ {
		max, err := s.StudentRepo.MaxSerial(in.CampusID, in.GradeLabel, in.Shift)
		if err != nil {
			return nil, err
		}
		serial := max + 1
		student = &model.Student{
			StudentID:   FormatStudentID(campus.Code, in.Shift, in.GradeLabel, serial),
			Name:        strings.TrimSpace(in.Name),
			FatherName:  strings.TrimSpace(in.FatherName),
			CampusID:    in.CampusID,
			GradeLabel:  in.GradeLabel,
			Shift:       in.Shift,
			ClassroomID: in.ClassroomID,
			Serial:      serial,
			Active:      true,
		}
		err = s.StudentRepo.Create(student)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt == 0 {
			continue
		}
		return nil, err
	}

	if err := s.ensureStudentIdentity(student); err != nil {
		// The student row exists; identity mirroring is retried on next login path.
		logger.Log.Error("identity mirroring failed",
			zap.String("student_id", student.StudentID),
			zap.Error(err))
	}
	return student, nil
}

// ensureStudentIdentity creates the login principal for a student when it
// does not exist yet. Idempotent: called again it is a no-op.
func (s *IdentityService) ensureStudentIdentity(student *model.Student) error {
	_, err := s.IdentityRepo.FindByStudentID(student.StudentID)
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(student.StudentID), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	sid := student.StudentID
	identity := &model.Identity{
		Username:  student.StudentID,
		Password:  string(hash),
		Name:      student.Name,
		Role:      model.RoleStudent,
		StudentID: &sid,
		Active:    true,
	}
	if err := s.IdentityRepo.Create(identity); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return nil
}

// DeactivateStudent keeps the row and its progress; the ID is never reissued.
func (s *IdentityService) DeactivateStudent(id uint) (*model.Student, error) {
	student, err := s.StudentRepo.FindByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("student %d", id)
		}
		return nil, err
	}
	student.Active = false
	if err := s.StudentRepo.Update(student); err != nil {
		return nil, err
	}
	if identity, err := s.IdentityRepo.FindByStudentID(student.StudentID); err == nil {
		identity.Active = false
		if err := s.IdentityRepo.Update(identity); err != nil {
			return nil, err
		}
	}
	return student, nil
}

// CreateTeacherInput registers a teacher on a campus shift.
type CreateTeacherInput struct {
	Name          string      `json:"name" binding:"required"`
	Email         string      `json:"email" binding:"required,email"`
	Password      string      `json:"password" binding:"required,min=8"`
	CampusID      uint        `json:"campusId" binding:"required"`
	Shift         model.Shift `json:"shift" binding:"required"`
	CoordinatorID *uint       `json:"coordinatorId"`
}

func (s *IdentityService) CreateTeacher(in CreateTeacherInput) (*model.Staff, error) {
	campus, err := s.CampusRepo.FindByID(in.CampusID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.TenancyMissingf("campus %d does not exist", in.CampusID)
		}
		return nil, err
	}
	if in.CoordinatorID != nil {
		coord, err := s.StaffRepo.FindByID(*in.CoordinatorID)
		if err != nil || coord.Kind != model.StaffCoordinator {
			return nil, util.Invalidf("coordinator %d does not exist", *in.CoordinatorID)
		}
	}

	lock := s.scopeLock(fmt.Sprintf("teacher:%d:%s", in.CampusID, in.Shift))
	lock.Lock()
	defer lock.Unlock()

	var staff *model.Staff
	for attempt := 0; attempt < 2; attempt++ {
		max, err := s.StaffRepo.MaxTeacherSerial(in.CampusID, in.Shift)
		if err != nil {
			return nil, err
		}
		serial := max + 1
		campusID := in.CampusID
		staff = &model.Staff{
			StaffID:       FormatTeacherID(campus.Code, in.Shift, serial),
			Kind:          model.StaffTeacher,
			Name:          strings.TrimSpace(in.Name),
			Email:         strings.ToLower(strings.TrimSpace(in.Email)),
			CampusID:      &campusID,
			Shift:         in.Shift,
			CoordinatorID: in.CoordinatorID,
			Serial:        serial,
			Active:        true,
		}
		err = s.StaffRepo.Create(staff)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, lookupErr := s.StaffRepo.FindByEmail(staff.Email); lookupErr == nil && existing.ID != 0 {
				return nil, util.Duplicatef("email %s", staff.Email)
			}
			if attempt == 0 {
				continue
			}
		}
		return nil, err
	}

	if err := s.ensureStaffIdentity(staff, in.Password, model.RoleTeacher); err != nil {
		logger.Log.Error("identity mirroring failed",
			zap.String("staff_id", staff.StaffID),
			zap.Error(err))
	}
	return staff, nil
}

// CreateCoordinatorInput registers an English coordinator.
type CreateCoordinatorInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *IdentityService) CreateCoordinator(in CreateCoordinatorInput) (*model.Staff, error) {
	lock := s.scopeLock("coordinator")
	lock.Lock()
	defer lock.Unlock()

	var staff *model.Staff
	for attempt := 0; attempt < 2; attempt++ {
		max, err := s.StaffRepo.MaxCoordinatorSerial()
		if err != nil {
			return nil, err
		}
		serial := max + 1
		staff = &model.Staff{
			StaffID: FormatCoordinatorID(serial),
			Kind:    model.StaffCoordinator,
			Name:    strings.TrimSpace(in.Name),
			Email:   strings.ToLower(strings.TrimSpace(in.Email)),
			Serial:  serial,
			Active:  true,
		}
		err = s.StaffRepo.Create(staff)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, lookupErr := s.StaffRepo.FindByEmail(staff.Email); lookupErr == nil && existing.ID != 0 {
				return nil, util.Duplicatef("email %s", staff.Email)
			}
			if attempt == 0 {
				continue
			}
		}
		return nil, err
	}

	if err := s.ensureStaffIdentity(staff, in.Password, model.RoleCoordinator); err != nil {
		logger.Log.Error("identity mirroring failed",
			zap.String("staff_id", staff.StaffID),
			zap.Error(err))
	}
	return staff, nil
}

func (s *IdentityService) ensureStaffIdentity(staff *model.Staff, password string, role model.UserRole) error {
	_, err := s.IdentityRepo.FindByEmail(staff.Email)
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	email := staff.Email
	identity := &model.Identity{
		Username: staff.Email,
		Password: string(hash),
		Name:     staff.Name,
		Role:     role,
		Email:    &email,
		Active:   true,
	}
	if err := s.IdentityRepo.Create(identity); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return nil
}

func (s *IdentityService) GetStudent(id uint) (*model.Student, error) {
	student, err := s.StudentRepo.FindByID(id)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundf("student %d", id)
	}
	return student, err
}

func (s *IdentityService) ListClassroomRoster(classroomID uint) ([]model.Student, error) {
	return s.StudentRepo.ListByClassroom(classroomID)
}
