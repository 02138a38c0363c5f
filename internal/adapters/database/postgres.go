package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/superbrain63/superbrain-ai/internal/config"
)

const DB_NAME = "superbrain"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=superbrain sslmode=disable"

const MAIN_SCHEMA = "superbrain"
const TESTING_SCHEMA = "superbrain_test"

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

// https://cloud.google.com/sql/docs/postgres/connect-run
func GetCloudSQLConnectionString(dbUsername, dbPassword, unixSocketPath string) string {
	return fmt.Sprintf(
		"user=%s password=%s database=%s host=%s",
		dbUsername,
		dbPassword,
		DB_NAME,
		unixSocketPath,
	)
}

func NewPostgresDatabase(connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	err = createDatabaseIfNotExists(db, DB_NAME)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return db, nil
}

func NewCloudsqlPostgresDatabase(conf config.Config) (*sqlx.DB, error) {
	var connectionString string
	if conf.IsDevelopment() {
		connectionString = LOCAL_CONNECTION_STRING
	} else {
		connectionString = GetCloudSQLConnectionString(conf.DBUsername(), conf.DBPassword(), conf.CloudSQLUnixSocketPath())
	}

	db, err := NewPostgresDatabase(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres database: %w", err)
	}

	return db, nil
}

func createDatabaseIfNotExists(db *sqlx.DB, dbName string) error {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM pg_database WHERE datname = $1", dbName)
	if err != nil {
		return fmt.Errorf("createDB: failed to check if database exists: %w", err)
	}

	if count > 0 {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		return fmt.Errorf("createDB: failed to create database: %w", err)
	}

	return nil
}
