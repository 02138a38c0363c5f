package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type migrator struct {
	db *sqlx.DB

	logger *slog.Logger
}

func NewDatabaseMigrator(db *sqlx.DB, logger *slog.Logger) *migrator {
	return &migrator{
		db:     db,
		logger: logger,
	}
}

// Migrate brings schemaName up to the latest embedded migration
func (m *migrator) Migrate(ctx context.Context, schemaName string) error {
	instance, closeInstance, err := m.newInstance(ctx, schemaName)
	if err != nil {
		return err
	}
	defer closeInstance()

	m.logger.InfoContext(ctx, "Starting migrations...", slog.String("schema", schemaName))
	if err := instance.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: failed to migrate: %w", err)
		}
		m.logger.InfoContext(ctx, "No migrations to run.")
	}
	m.logger.InfoContext(ctx, "Migrations completed successfully.")

	return nil
}

// Version reports the applied migration version of schemaName
func (m *migrator) Version(ctx context.Context, schemaName string) (uint, bool, error) {
	instance, closeInstance, err := m.newInstance(ctx, schemaName)
	if err != nil {
		return 0, false, err
	}
	defer closeInstance()

	version, dirty, err := instance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate: failed to get version: %w", err)
	}
	return version, dirty, nil
}

func (m *migrator) newInstance(ctx context.Context, schemaName string) (*migrate.Migrate, func(), error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: failed to connect to db: %w", err)
	}

	_, err = conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schemaName)))
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: failed to create schema: %w", err)
	}

	_, err = conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(schemaName)))
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: failed to set search path: %w", err)
	}

	migrationSource, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: failed to create driver from embedded migrations: %w", err)
	}

	dbDriver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
		DatabaseName: DB_NAME,
		SchemaName:   schemaName,
	})
	if err != nil {
		migrationSource.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: failed to create postgres driver: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", migrationSource, "postgres", dbDriver)
	if err != nil {
		migrationSource.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: failed to create migration instance: %w", err)
	}

	// Closing the instance closes the source and the driver, which owns conn
	closeInstance := func() {
		instance.Close()
	}

	return instance, closeInstance, nil
}
