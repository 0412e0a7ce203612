package database

import (
	"fuzzrunner/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDBConnection returns nil when no database is configured or reachable;
// results are then simply not persisted.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	connectionString := appConfig.DatabaseURL
	if connectionString == "" {
		logger.Debug("DATABASE_URL not set, results will not be persisted")
		return nil
	}
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect database", zap.Error(err))
		return nil
	}
	if err := db.AutoMigrate(&FuzzRun{}, &Bug{}); err != nil {
		logger.Error("failed to migrate database", zap.Error(err))
		return nil
	}
	logger.Debug("connected to database")
	return db
}
