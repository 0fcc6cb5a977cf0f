package model

type PlantStage string

const (
	StageSeed      PlantStage = "seed"
	StageSprout    PlantStage = "sprout"
	StageSapling   PlantStage = "sapling"
	StageTree      PlantStage = "tree"
	StageFruitTree PlantStage = "fruit_tree"
)

const (
	PlantMaxHealth   = 100
	PlantCareRestore = 20
	PlantDecayPerDay = 5 // per missed day beyond the first
	DefaultHearts    = 5
)

// PlantType is a seedable catalog of plant skins.
// swagger:model PlantType
type PlantType struct {
	BaseModel
	Name        string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
	Enabled     bool   `json:"enabled"`
}

func (PlantType) TableName() string {
	return "plant_types"
}

// PlantStageDef describes a stage of a plant type for client rendering.
// swagger:model PlantStageDef
type PlantStageDef struct {
	BaseModel
	PlantTypeID uint       `gorm:"index:idx_type_stage,unique;not null" json:"plantTypeId"`
	Stage       PlantStage `gorm:"size:20;index:idx_type_stage,unique;not null" json:"stage"`
	ImageURL    string     `gorm:"size:255" json:"imageUrl"`
	Caption     string     `gorm:"size:255" json:"caption"`
}

func (PlantStageDef) TableName() string {
	return "plant_stage_defs"
}

// UserPlant is the per-user virtual plant. Stage is derived from position
// within the current group; wilting and health react to missed days.
// swagger:model UserPlant
type UserPlant struct {
	BaseModel
	UserID          uint       `gorm:"uniqueIndex;not null" json:"userId"`
	PlantTypeID     uint       `gorm:"index" json:"plantTypeId"`
	Stage           PlantStage `gorm:"size:20;default:'seed'" json:"stage"`
	TotalXP         int        `gorm:"default:0" json:"totalXp"`
	LevelsCompleted int        `gorm:"default:0" json:"levelsCompleted"`
	HealthPoints    int        `gorm:"default:100" json:"healthPoints"`
	DailyCareStreak int        `gorm:"default:0" json:"dailyCareStreak"`
	MaxCareStreak   int        `gorm:"default:0" json:"maxCareStreak"`
	LastCareDate    *string    `gorm:"size:10" json:"lastCareDate,omitempty"`
	IsWilting       bool       `gorm:"default:false" json:"isWilting"`
}

func (UserPlant) TableName() string {
	return "user_plants"
}
