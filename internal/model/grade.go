package model

type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

// ShiftCode returns the single-letter code used in student and staff IDs.
func ShiftCode(s Shift) string {
	if s == ShiftAfternoon {
		return "A"
	}
	return "M"
}

// Grade is a (campus, label, shift) triple, e.g. ("C01", "Grade 1", morning).
// swagger:model Grade
type Grade struct {
	BaseModel
	CampusID         uint   `gorm:"index:idx_campus_label_shift,unique;not null" json:"campusId"`
	Label            string `gorm:"size:50;index:idx_campus_label_shift,unique;not null" json:"label"`
	Shift            Shift  `gorm:"size:20;index:idx_campus_label_shift,unique;not null" json:"shift"`
	EnglishTeacherID *uint  `gorm:"index" json:"englishTeacherId,omitempty"`

	Campus Campus `gorm:"foreignKey:CampusID" json:"-"`
}

func (Grade) TableName() string {
	return "grades"
}

// Classroom is a (grade, section) pair owning a roster of students.
// swagger:model Classroom
type Classroom struct {
	BaseModel
	GradeID        uint   `gorm:"index:idx_grade_section,unique;not null" json:"gradeId"`
	Section        string `gorm:"size:10;index:idx_grade_section,unique;not null" json:"section"`
	ClassTeacherID *uint  `gorm:"uniqueIndex" json:"classTeacherId,omitempty"` // a teacher runs at most one classroom

	Grade Grade `gorm:"foreignKey:GradeID" json:"-"`
}

func (Classroom) TableName() string {
	return "classrooms"
}
