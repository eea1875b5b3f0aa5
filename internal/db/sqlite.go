package db

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/termforge/glossary-backend/internal/types"
)

// NewSQLiteMemory opens a throwaway in-memory database with the full schema
// migrated. Tests run the real repos against it instead of mocking gorm.
// Each call gets its own named memory database; cache=shared keeps every
// pooled connection on the same one.
func NewSQLiteMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:mem_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory db: %w", err)
	}
	// One connection: sqlite's shared-cache mode returns table-lock errors
	// to concurrent writers instead of waiting on busy_timeout.
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("access sqlite connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gormDB.AutoMigrate(
		&types.Term{},
		&types.SectionItem{},
		&types.BatchJob{},
		&types.LLMCallLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate sqlite memory db: %w", err)
	}
	return gormDB, nil
}
