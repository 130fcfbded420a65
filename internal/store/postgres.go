package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by a PostgreSQL database.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to PostgreSQL with the given DSN and applies
// the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply PostgreSQL migrations: %w", err)
	}
	slog.Debug("PostgresStore initialized")
	return &PostgresStore{sqlStore{db: db, driver: "postgres"}}, nil
}
