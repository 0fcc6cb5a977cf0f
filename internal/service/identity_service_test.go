package service

import (
	"errors"
	"testing"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
)

func TestGradeCode(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{label: "Nursery", want: "NUR"},
		{label: "nursery", want: "NUR"},
		{label: "KG-1", want: "KG1"},
		{label: "KG-2", want: "KG2"},
		{label: "Kindergarten 1", want: "KG1"},
		{label: "Grade 1", want: "G01"},
		{label: "Grade 7", want: "G07"},
		{label: "Grade 10", want: "G10"},
		{label: "grade  3", want: "G03"},
	}
	for _, tt := range tests {
		if got := GradeCode(tt.label); got != tt.want {
			t.Errorf("GradeCode(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestIDFormats(t *testing.T) {
	if got := FormatStudentID("C01", model.ShiftMorning, "Grade 3", 42); got != "C01-M-G03-0042" {
		t.Errorf("FormatStudentID = %q", got)
	}
	if got := FormatStudentID("C02", model.ShiftAfternoon, "Nursery", 1); got != "C02-A-NUR-0001" {
		t.Errorf("FormatStudentID = %q", got)
	}
	if got := FormatTeacherID("C01", model.ShiftAfternoon, 7); got != "C01-A-T-007" {
		t.Errorf("FormatTeacherID = %q", got)
	}
	if got := FormatCoordinatorID(3); got != "EC-003" {
		t.Errorf("FormatCoordinatorID = %q", got)
	}
}

func TestCreateStudentIssuesSerials(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t) // seeds serial 1 directly

	in := CreateStudentInput{
		Name:       "Bilal",
		CampusID:   f.Campus.ID,
		GradeLabel: f.Grade.Label,
		Shift:      model.ShiftMorning,
	}
	st, err := s.identity.CreateStudent(in)
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if st.StudentID != "C01-M-G03-0002" {
		t.Errorf("StudentID = %q, want C01-M-G03-0002", st.StudentID)
	}

	// Deactivation must not free the serial.
	if _, err := s.identity.DeactivateStudent(st.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	in.Name = "Hira"
	st2, err := s.identity.CreateStudent(in)
	if err != nil {
		t.Fatalf("create student after deactivation: %v", err)
	}
	if st2.StudentID != "C01-M-G03-0003" {
		t.Errorf("StudentID after deactivation = %q, want C01-M-G03-0003", st2.StudentID)
	}

	// The login identity is mirrored with the ID as initial password.
	identity, err := s.identityRepo.FindByStudentID(st2.StudentID)
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	if identity.Username != st2.StudentID || identity.Role != model.RoleStudent {
		t.Errorf("mirrored identity = %+v", identity)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.Password), []byte(st2.StudentID)); err != nil {
		t.Error("initial password is not the student ID")
	}
}

func TestCreateStudentSerialScopes(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	// A different shift in the same grade starts its own sequence.
	if _, err := s.identity.CreateGrade(CreateGradeInput{
		CampusID: f.Campus.ID, Label: f.Grade.Label, Shift: model.ShiftAfternoon,
	}); err != nil {
		t.Fatalf("create afternoon grade: %v", err)
	}
	st, err := s.identity.CreateStudent(CreateStudentInput{
		Name:       "Sana",
		CampusID:   f.Campus.ID,
		GradeLabel: f.Grade.Label,
		Shift:      model.ShiftAfternoon,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if st.StudentID != "C01-A-G03-0001" {
		t.Errorf("StudentID = %q, want C01-A-G03-0001", st.StudentID)
	}
}

func TestCreateStudentMissingTenancy(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	_, err := s.identity.CreateStudent(CreateStudentInput{
		Name:       "Omar",
		CampusID:   f.Campus.ID,
		GradeLabel: "Grade 9", // never created
		Shift:      model.ShiftMorning,
	})
	if !errors.Is(err, util.ErrTenancyMissing) {
		t.Errorf("missing grade error = %v, want tenancy missing", err)
	}

	_, err = s.identity.CreateStudent(CreateStudentInput{
		Name:       "Omar",
		CampusID:   9999,
		GradeLabel: f.Grade.Label,
		Shift:      model.ShiftMorning,
	})
	if !errors.Is(err, util.ErrTenancyMissing) {
		t.Errorf("missing campus error = %v, want tenancy missing", err)
	}
}

func TestEnsureStudentIdentityIdempotent(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	st, err := s.identity.CreateStudent(CreateStudentInput{
		Name:       "Zara",
		CampusID:   f.Campus.ID,
		GradeLabel: f.Grade.Label,
		Shift:      model.ShiftMorning,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if err := s.identity.ensureStudentIdentity(st); err != nil {
		t.Fatalf("second mirror: %v", err)
	}
	var count int64
	if err := s.db.Model(&model.Identity{}).Where("student_id = ?", st.StudentID).Count(&count).Error; err != nil {
		t.Fatalf("count identities: %v", err)
	}
	if count != 1 {
		t.Errorf("identity count = %d, want 1", count)
	}
}

func TestCreateCampusDuplicateCode(t *testing.T) {
	s := newTestStack(t)
	if _, err := s.identity.CreateCampus(CreateCampusInput{Code: "c01", Name: "North"}); err != nil {
		t.Fatalf("create campus: %v", err)
	}
	_, err := s.identity.CreateCampus(CreateCampusInput{Code: "C01", Name: "Clone"})
	if !errors.Is(err, util.ErrDuplicateIdentifier) {
		t.Errorf("duplicate campus error = %v, want duplicate identifier", err)
	}
}

func TestCreateTeacherAndCoordinator(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	teacher, err := s.identity.CreateTeacher(CreateTeacherInput{
		Name:     "Mr Khan",
		Email:    "Khan@School.Test",
		Password: "password123",
		CampusID: f.Campus.ID,
		Shift:    model.ShiftMorning,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	if teacher.StaffID != "C01-M-T-001" {
		t.Errorf("teacher StaffID = %q", teacher.StaffID)
	}
	if teacher.Email != "khan@school.test" {
		t.Errorf("email not normalized: %q", teacher.Email)
	}

	// Same email again is rejected, not retried into a new serial.
	_, err = s.identity.CreateTeacher(CreateTeacherInput{
		Name:     "Clone",
		Email:    "khan@school.test",
		Password: "password123",
		CampusID: f.Campus.ID,
		Shift:    model.ShiftMorning,
	})
	if !errors.Is(err, util.ErrDuplicateIdentifier) {
		t.Errorf("duplicate email error = %v, want duplicate identifier", err)
	}

	coord, err := s.identity.CreateCoordinator(CreateCoordinatorInput{
		Name:     "Ms Fatima",
		Email:    "fatima@school.test",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("create coordinator: %v", err)
	}
	if coord.StaffID != "EC-001" {
		t.Errorf("coordinator StaffID = %q", coord.StaffID)
	}

	identity, err := s.identityRepo.FindByEmail(coord.Email)
	if err != nil {
		t.Fatalf("find coordinator identity: %v", err)
	}
	if identity.Role != model.RoleCoordinator || identity.Username != coord.Email {
		t.Errorf("coordinator identity = %+v", identity)
	}
}

func TestAssignClassTeacher(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	teacher, err := s.identity.CreateTeacher(CreateTeacherInput{
		Name:     "Mr Khan",
		Email:    "khan@school.test",
		Password: "password123",
		CampusID: f.Campus.ID,
		Shift:    model.ShiftMorning,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}

	classroom, err := s.identity.AssignClassTeacher(f.Classroom.ID, teacher.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if classroom.ClassTeacherID == nil || *classroom.ClassTeacherID != teacher.ID {
		t.Errorf("classroom = %+v", classroom)
	}

	// A teacher runs at most one classroom.
	other, err := s.identity.CreateClassroom(CreateClassroomInput{GradeID: f.Grade.ID, Section: "B"})
	if err != nil {
		t.Fatalf("create classroom: %v", err)
	}
	if _, err := s.identity.AssignClassTeacher(other.ID, teacher.ID); err == nil {
		t.Error("second assignment of the same teacher succeeded")
	}
}

func TestSetCampusStatus(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	campus, err := s.identity.SetCampusStatus(f.Campus.ID, model.CampusInactive)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if campus.Status != model.CampusInactive {
		t.Errorf("status = %q", campus.Status)
	}
	if _, err := s.identity.SetCampusStatus(f.Campus.ID, "demolished"); !errors.Is(err, util.ErrInvalid) {
		t.Errorf("bad status error = %v, want invalid", err)
	}
}
