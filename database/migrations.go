package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/models"
)

// RunMigrations creates or updates the schema and seeds the roles.
func RunMigrations(db *gorm.DB, log *zap.SugaredLogger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Follow{},
		&models.Composition{},
	)
	if err != nil {
		return fmt.Errorf("database: automigrate: %w", err)
	}

	if err := InsertRoles(db); err != nil {
		return err
	}

	log.Info("migrations completed")
	return nil
}
