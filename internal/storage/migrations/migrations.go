// Package migrations содержит схему журнала для каждого поддерживаемого диалекта.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Up применяет все миграции диалекта к открытому соединению.
// Экземпляр migrate не закрывается: Close закрыл бы и переданный sqlDB.
func Up(sqlDB *sql.DB, dialect string) error {
	var (
		driver database.Driver
		name   string
		err    error
	)
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
		name = "sqlite3"
	case DialectPostgres:
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
		name = "postgres"
	default:
		return fmt.Errorf("unsupported database type %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	src, err := iofs.New(files, dialect)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
