package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	// The sqlite3 driver is not safe for concurrent writes on one file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply SQLite migrations: %w", err)
	}
	slog.Debug("SQLiteStore initialized", "path", path)
	return &SQLiteStore{sqlStore{db: db, driver: "sqlite3"}}, nil
}
