package store

import (
	"log/slog"
	"strings"
)

// Opts holds configuration for building a Store.
type Opts struct {
	// PostgresDSN is the PostgreSQL connection string.
	PostgresDSN string
	// SQLiteDSN is the path to the SQLite database file.
	SQLiteDSN string
}

// Option configures Opts.
type Option func(*Opts)

// WithPostgresDSN selects the PostgreSQL backend.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.PostgresDSN = dsn
	}
}

// WithSQLiteDSN selects the SQLite backend.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.SQLiteDSN = dsn
	}
}

// IsPostgresDSN reports whether dsn looks like a PostgreSQL connection
// string rather than a SQLite file path.
func IsPostgresDSN(dsn string) bool {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return true
	}
	// key=value form, e.g. "host=... user=... dbname=..."
	for _, kv := range []string{"host=", "user=", "dbname=", "password="} {
		if strings.Contains(dsn, kv) {
			return true
		}
	}
	return false
}

// NewStore builds a Store from the options: PostgreSQL when a Postgres DSN
// is set, SQLite when a SQLite DSN is set, otherwise in-memory.
func NewStore(opts ...Option) (Store, error) {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.PostgresDSN != "":
		slog.Info("store: using PostgreSQL backend")
		return NewPostgresStore(o.PostgresDSN)
	case o.SQLiteDSN != "":
		slog.Info("store: using SQLite backend", "path", o.SQLiteDSN)
		return NewSQLiteStore(o.SQLiteDSN)
	default:
		slog.Info("store: using in-memory backend")
		return NewInMemoryStore(), nil
	}
}
