package common

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDb opens the SQLite file with foreign key enforcement switched on.
func ConnectDb(dbFile string, log *zap.SugaredLogger) (*gorm.DB, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("common: sqlite database path not set")
	}

	db, err := gorm.Open(sqlite.Open(withForeignKeys(dbFile)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("common: open sqlite db %s: %w", dbFile, err)
	}
	log.Infow("opened sqlite db", "path", dbFile)
	return db, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}
