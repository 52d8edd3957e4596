package db

import (
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nick-seward/vibe-dj-sub000/config"
	"github.com/nick-seward/vibe-dj-sub000/logger"
	"github.com/nick-seward/vibe-dj-sub000/model"
)

// GormDB is the shared database handle. The record store is a single sqlite
// file so the library stays portable; busy_timeout covers the brief overlap
// between the indexing writer and read-only playlist queries.
var GormDB *gorm.DB

// Connect opens (and creates if needed) the sqlite database.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", filepath.Clean(cfg.DatabasePath))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}

	GormDB = gdb
	logger.Info("connected to database", logger.String("path", cfg.DatabasePath))
	return gdb, nil
}

// Close closes the underlying connection pool.
func Close() error {
	if GormDB == nil {
		return nil
	}
	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the tracks and features tables.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&model.Track{}, &model.Feature{}); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}
