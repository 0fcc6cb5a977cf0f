package service

import (
	"context"
	"errors"
	"testing"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
)

// scopeFixture builds two classrooms with one student each, a teacher on
// the first classroom reporting to a coordinator, and logins for all of
// them.
type scopeFixture struct {
	*schoolFixture
	OtherStudent  model.Student
	AdminID       uint
	TeacherID     uint
	CoordinatorID uint
	StudentUserID uint
	OtherUserID   uint
}

func newScopeFixture(t *testing.T, s *testStack) *scopeFixture {
	t.Helper()
	f := &scopeFixture{schoolFixture: s.seedSchool(t)}
	f.StudentUserID = f.UserID

	coord, err := s.identity.CreateCoordinator(CreateCoordinatorInput{
		Name: "Ms Fatima", Email: "fatima@school.test", Password: "password123",
	})
	if err != nil {
		t.Fatalf("create coordinator: %v", err)
	}
	teacher, err := s.identity.CreateTeacher(CreateTeacherInput{
		Name: "Mr Khan", Email: "khan@school.test", Password: "password123",
		CampusID: f.Campus.ID, Shift: model.ShiftMorning, CoordinatorID: &coord.ID,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	if _, err := s.identity.AssignClassTeacher(f.Classroom.ID, teacher.ID); err != nil {
		t.Fatalf("assign teacher: %v", err)
	}

	// Second classroom with a student outside the teacher's scope.
	other, err := s.identity.CreateClassroom(CreateClassroomInput{GradeID: f.Grade.ID, Section: "B"})
	if err != nil {
		t.Fatalf("create classroom: %v", err)
	}
	st, err := s.identity.CreateStudent(CreateStudentInput{
		Name: "Bilal", CampusID: f.Campus.ID, GradeLabel: f.Grade.Label,
		Shift: model.ShiftMorning, ClassroomID: &other.ID,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	f.OtherStudent = *st

	admin := model.Identity{
		Username: "admin", Password: "x", Name: "Admin",
		Role: model.RoleAdmin, Timezone: "UTC", Active: true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	f.AdminID = admin.ID

	lookup := func(query string, arg interface{}) uint {
		var identity model.Identity
		if err := s.db.Where(query, arg).First(&identity).Error; err != nil {
			t.Fatalf("lookup identity %v: %v", arg, err)
		}
		return identity.ID
	}
	f.TeacherID = lookup("email = ?", teacher.Email)
	f.CoordinatorID = lookup("email = ?", coord.Email)
	f.OtherUserID = lookup("student_id = ?", st.StudentID)
	return f
}

func TestScopeListStudents(t *testing.T) {
	s := newTestStack(t)
	scopeService := NewScopeService(s.identityRepo, s.staffRepo, s.studentRepo, s.classroomRepo, s.db)
	f := newScopeFixture(t, s)

	tests := []struct {
		name   string
		userID uint
		want   []string
	}{
		{name: "admin sees everyone", userID: f.AdminID, want: []string{f.Student.StudentID, f.OtherStudent.StudentID}},
		{name: "teacher sees own classroom", userID: f.TeacherID, want: []string{f.Student.StudentID}},
		{name: "coordinator sees managed classrooms", userID: f.CoordinatorID, want: []string{f.Student.StudentID}},
		{name: "student sees self", userID: f.StudentUserID, want: []string{f.Student.StudentID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := scopeService.Resolve(tt.userID)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			students, err := scopeService.ListStudents(filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := make([]string, len(students))
			for i := range students {
				got[i] = students[i].StudentID
			}
			if len(got) != len(tt.want) {
				t.Fatalf("students = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("students = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestScopeContainsUser(t *testing.T) {
	s := newTestStack(t)
	scopeService := NewScopeService(s.identityRepo, s.staffRepo, s.studentRepo, s.classroomRepo, s.db)
	f := newScopeFixture(t, s)

	tests := []struct {
		name   string
		actor  uint
		target uint
		want   bool
	}{
		{name: "teacher and own student", actor: f.TeacherID, target: f.StudentUserID, want: true},
		{name: "teacher and foreign student", actor: f.TeacherID, target: f.OtherUserID, want: false},
		{name: "coordinator and managed student", actor: f.CoordinatorID, target: f.StudentUserID, want: true},
		{name: "coordinator and unmanaged student", actor: f.CoordinatorID, target: f.OtherUserID, want: false},
		{name: "admin and anyone", actor: f.AdminID, target: f.OtherUserID, want: true},
		{name: "student and self", actor: f.StudentUserID, target: f.StudentUserID, want: true},
		{name: "student and classmate", actor: f.StudentUserID, target: f.OtherUserID, want: false},
		{name: "staff target is never in scope", actor: f.CoordinatorID, target: f.TeacherID, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := scopeService.Resolve(tt.actor)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			got, err := scopeService.ContainsUser(filter, tt.target)
			if err != nil {
				t.Fatalf("contains: %v", err)
			}
			if got != tt.want {
				t.Errorf("ContainsUser = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeTeacherWithoutClassroom(t *testing.T) {
	s := newTestStack(t)
	scopeService := NewScopeService(s.identityRepo, s.staffRepo, s.studentRepo, s.classroomRepo, s.db)
	f := s.seedSchool(t)

	teacher, err := s.identity.CreateTeacher(CreateTeacherInput{
		Name: "Mr Ali", Email: "ali@school.test", Password: "password123",
		CampusID: f.Campus.ID, Shift: model.ShiftMorning,
	})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	var identity model.Identity
	if err := s.db.Where("email = ?", teacher.Email).First(&identity).Error; err != nil {
		t.Fatalf("find identity: %v", err)
	}

	filter, err := scopeService.Resolve(identity.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filter.ClassroomID() != nil {
		t.Error("unassigned teacher has a classroom id")
	}
	students, err := scopeService.ListStudents(filter)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(students) != 0 {
		t.Errorf("unassigned teacher sees %d students", len(students))
	}
}

func TestGradePerformanceScope(t *testing.T) {
	s := newTestStack(t)
	scopeService := NewScopeService(s.identityRepo, s.staffRepo, s.studentRepo, s.classroomRepo, s.db)
	f := newScopeFixture(t, s)

	dash := NewDashboardService(
		s.identityRepo, s.studentRepo, s.staffRepo, s.classroomRepo,
		s.gradeRepo, s.campusRepo, s.analyticsRepo, s.progressRepo,
		s.dailyRepo, s.plantRepo, s.groupRepo, s.progression, scopeService,
		nil, &config.Config{}, s.db)

	// A grade with no classroom run by the fixture teacher.
	other, err := s.identity.CreateGrade(CreateGradeInput{
		CampusID: f.Campus.ID, Label: "Grade 5", Shift: model.ShiftMorning,
	})
	if err != nil {
		t.Fatalf("create grade: %v", err)
	}

	date := today()
	tests := []struct {
		name    string
		userID  uint
		gradeID uint
		allowed bool
	}{
		{name: "admin any grade", userID: f.AdminID, gradeID: other.ID, allowed: true},
		{name: "teacher own grade", userID: f.TeacherID, gradeID: f.Grade.ID, allowed: true},
		{name: "teacher foreign grade", userID: f.TeacherID, gradeID: other.ID, allowed: false},
		{name: "coordinator managed grade", userID: f.CoordinatorID, gradeID: f.Grade.ID, allowed: true},
		{name: "coordinator unmanaged grade", userID: f.CoordinatorID, gradeID: other.ID, allowed: false},
		{name: "student denied", userID: f.StudentUserID, gradeID: f.Grade.ID, allowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dash.GetGradePerformance(context.Background(), tt.userID, tt.gradeID, date)
			if tt.allowed && err != nil {
				t.Errorf("GetGradePerformance error = %v, want nil", err)
			}
			if !tt.allowed && !errors.Is(err, util.ErrForbidden) {
				t.Errorf("GetGradePerformance error = %v, want forbidden", err)
			}
		})
	}
}
