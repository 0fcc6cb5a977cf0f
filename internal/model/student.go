package model

// Student is enrolled in a classroom. StudentID is the user-facing code
// <campus>-<M|A>-<grade>-<serial>; it never changes once issued, and a
// student with progress rows is deactivated instead of deleted.
// swagger:model Student
type Student struct {
	BaseModel
	StudentID   string `gorm:"size:30;uniqueIndex;not null" json:"studentId"`
	Name        string `gorm:"size:100;not null" json:"name"`
	FatherName  string `gorm:"size:100" json:"fatherName"`
	CampusID    uint   `gorm:"index;not null" json:"campusId"`
	GradeLabel  string `gorm:"size:50;not null" json:"gradeLabel"`
	Shift       Shift  `gorm:"size:20;not null" json:"shift"`
	ClassroomID *uint  `gorm:"index" json:"classroomId,omitempty"`
	Serial      int    `gorm:"not null" json:"-"` // per (campus, grade, shift), monotonic
	Active      bool   `json:"active"`

	Campus Campus `gorm:"foreignKey:CampusID" json:"-"`
}

func (Student) TableName() string {
	return "students"
}
