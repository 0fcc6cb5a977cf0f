package model

import (
	"time"
)

type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleCoordinator UserRole = "coordinator"
	RoleTeacher     UserRole = "teacher"
	RoleStudent     UserRole = "student"
)

// Identity is a login principal. Exactly one identity exists per role
// entity (student or staff); it is created and deleted together with it.
// swagger:model Identity
type Identity struct {
	BaseModel
	Username  string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Role      UserRole  `gorm:"size:20;default:'student'" json:"role"`
	StudentID *string   `gorm:"size:30;index" json:"studentId,omitempty"` // set for student identities
	Email     *string   `gorm:"size:100;index" json:"email,omitempty"`    // set for staff identities
	Timezone  string    `gorm:"size:50;default:'Asia/Karachi'" json:"timezone"`
	Active    bool      `json:"active"`
	LastLogin time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"lastLogin"`
}

func (Identity) TableName() string {
	return "identities"
}

// Location resolves the identity's timezone, falling back to UTC.
func (i *Identity) Location() *time.Location {
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
