package gorm

import (
	"fmt"

	"homelab-agent/internal/storage/migrations"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open подключается к базе выбранного типа и применяет миграции.
// Для sqlite пул ограничен одним соединением, так что каждая запись
// в журнал - одна сериализованная вставка.
func Open(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case migrations.DialectSQLite:
		dialector = sqlite.Open(dsn)
	case migrations.DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dbType == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := migrations.Up(sqlDB, dbType); err != nil {
		return nil, err
	}
	return db, nil
}
