package model

type CampusStatus string

const (
	CampusActive   CampusStatus = "active"
	CampusInactive CampusStatus = "inactive"
	CampusClosed   CampusStatus = "closed"
)

// Campus is the root tenant of the school hierarchy.
// swagger:model Campus
type Campus struct {
	BaseModel
	Code   string       `gorm:"size:10;uniqueIndex;not null" json:"code"` // e.g. C01
	Name   string       `gorm:"size:100;not null" json:"name"`
	Status CampusStatus `gorm:"size:20;default:'active'" json:"status"`
}

func (Campus) TableName() string {
	return "campuses"
}
