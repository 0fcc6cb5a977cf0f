package model

type StaffKind string

const (
	StaffTeacher     StaffKind = "teacher"
	StaffCoordinator StaffKind = "coordinator"
)

// Staff covers teachers and English coordinators. Teachers carry
// <campus>-<M|A>-T-<serial> IDs and may report to a coordinator;
// coordinators carry EC-<serial> IDs and are campus-independent.
// swagger:model Staff
type Staff struct {
	BaseModel
	StaffID       string    `gorm:"size:30;uniqueIndex;not null" json:"staffId"`
	Kind          StaffKind `gorm:"size:20;not null" json:"kind"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Email         string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	CampusID      *uint     `gorm:"index" json:"campusId,omitempty"`
	Shift         Shift     `gorm:"size:20" json:"shift,omitempty"`
	CoordinatorID *uint     `gorm:"index" json:"coordinatorId,omitempty"` // teachers only
	Serial        int       `gorm:"not null" json:"-"`
	Active        bool      `json:"active"`
}

func (Staff) TableName() string {
	return "staff"
}
