package repository

import (
	"english_edu_backend/internal/model"

	"gorm.io/gorm"
)

type PlantRepository struct {
	DB *gorm.DB
}

func NewPlantRepository(db *gorm.DB) *PlantRepository {
	return &PlantRepository{DB: db}
}

// WithTx returns a copy bound to tx.
func (r *PlantRepository) WithTx(tx *gorm.DB) *PlantRepository {
	return &PlantRepository{DB: tx}
}

// GetOrCreate returns the user's plant, creating a fresh seed with the
// first enabled plant type when none exists yet.
func (r *PlantRepository) GetOrCreate(userID uint) (*model.UserPlant, error) {
	var plant model.UserPlant
	err := r.DB.Where("user_id = ?", userID).First(&plant).Error
	if err == nil {
		return &plant, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var plantType model.PlantType
	r.DB.Where("enabled = ?", true).Order("id ASC").First(&plantType)

	plant = model.UserPlant{
		UserID:       userID,
		PlantTypeID:  plantType.ID,
		Stage:        model.StageSeed,
		HealthPoints: model.PlantMaxHealth,
	}
	if err := r.DB.Create(&plant).Error; err != nil {
		return nil, err
	}
	return &plant, nil
}

func (r *PlantRepository) Update(plant *model.UserPlant) error {
	return r.DB.Save(plant).Error
}

func (r *PlantRepository) FindTopByXP(limit int) ([]model.UserPlant, error) {
	var plants []model.UserPlant
	err := r.DB.Order("total_xp DESC").Limit(limit).Find(&plants).Error
	return plants, err
}

func (r *PlantRepository) StageDefs(plantTypeID uint) ([]model.PlantStageDef, error) {
	var defs []model.PlantStageDef
	err := r.DB.Where("plant_type_id = ?", plantTypeID).Find(&defs).Error
	return defs, err
}
