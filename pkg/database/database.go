package database

import (
	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	Seed(db)

	return db, nil
}

// Migrate creates or updates every table the engine owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Identity{},
		&model.Campus{},
		&model.Grade{},
		&model.Classroom{},
		&model.Student{},
		&model.Staff{},
		&model.Group{},
		&model.Level{},
		&model.Question{},
		&model.GroupUnlockTest{},
		&model.UnlockTestQuestion{},
		&model.TestAttempt{},
		&model.QuestionProgress{},
		&model.LevelProgress{},
		&model.GroupProgress{},
		&model.DailyProgress{},
		&model.PlantType{},
		&model.PlantStageDef{},
		&model.UserPlant{},
		&model.ClassAnalytics{},
		&model.TeacherAnalytics{},
		&model.CampusAnalytics{},
		&model.OverallAnalytics{},
		&model.PerformanceTrend{},
		&model.RollupEvent{},
	)
}

// Seed inserts the default plant catalog when the tables are empty.
func Seed(db *gorm.DB) {
	var count int64
	db.Model(&model.PlantType{}).Count(&count)
	if count == 0 {
		defaultTypes := []model.PlantType{
			{Name: "oak", Description: "Sturdy starter tree", Enabled: true},
			{Name: "mango", Description: "Fruit-bearing reward tree", Enabled: true},
			{Name: "rose", Description: "Flowering plant", Enabled: true},
		}
		for i := range defaultTypes {
			db.Create(&defaultTypes[i])
		}

		stages := []model.PlantStage{
			model.StageSeed, model.StageSprout, model.StageSapling,
			model.StageTree, model.StageFruitTree,
		}
		for _, t := range defaultTypes {
			for _, s := range stages {
				db.Create(&model.PlantStageDef{
					PlantTypeID: t.ID,
					Stage:       s,
					Caption:     fmt.Sprintf("%s (%s)", t.Name, s),
				})
			}
		}
	}
}
