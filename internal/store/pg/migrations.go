package pg

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func gooseInit() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// MigrateUp applies all pending schema migrations.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if err := gooseInit(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	if err := gooseInit(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// MigrationStatus prints the migration table state to stdout.
func MigrationStatus(ctx context.Context, db *sql.DB) error {
	if err := gooseInit(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Migrate brings the store's schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return MigrateUp(ctx, s.db)
}
