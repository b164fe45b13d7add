package repository

import (
	"context"
	"fmt"
	"strings"
)

// Backend keys accepted by New.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendPgx      = "pgx"
	BackendSqlx     = "sqlx"
	BackendGorm     = "gorm"
)

// DefaultSQLiteDSN keeps the embedded database in memory.
const DefaultSQLiteDSN = ":memory:"

// Config holds everything a backend needs. It replaces process-wide
// connection state: each repository owns the connection it opens.
type Config struct {
	Backend     string      // one of the Backend* keys
	DSN         string      // file path or ":memory:" for SQLite, URL for Postgres
	Table       string      // defaults to DefaultTable(Backend)
	ReadPattern ReadPattern // window used by Read
	ReadLimit   int         // rows per FixedWindow read
}

// Backends lists every supported backend key.
func Backends() []string {
	return []string{BackendMemory, BackendSQLite, BackendPostgres, BackendPgx, BackendSqlx, BackendGorm}
}

// aliases maps alternative spellings onto backend keys.
var aliases = map[string]string{
	"mem":        BackendMemory,
	"sqlite3":    BackendSQLite,
	"postgresql": BackendPostgres,
	"pg":         BackendPostgres,
}

// Canonical normalizes a user-supplied backend name to its Backend* key.
// Unknown names are returned lowercased so callers can report them.
func Canonical(backend string) string {
	key := strings.ToLower(strings.TrimSpace(backend))
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// DefaultTable returns the table name a backend uses when Config.Table is empty.
// Postgres backends get distinct names so they can share one database.
func DefaultTable(backend string) string {
	switch Canonical(backend) {
	case BackendPgx:
		return "pgx_products"
	case BackendSqlx:
		return "sqlx_products"
	case BackendGorm:
		return "gorm_products"
	default:
		return "products"
	}
}

// NeedsPostgres reports whether the backend connects to a networked Postgres.
func NeedsPostgres(backend string) bool {
	switch Canonical(backend) {
	case BackendPostgres, BackendPgx, BackendSqlx, BackendGorm:
		return true
	}
	return false
}

// New opens the backend described by cfg. The connection is established
// here, before Prepare, and released by Close.
func New(ctx context.Context, cfg Config) (Repository, error) {
	cfg.Backend = Canonical(cfg.Backend)
	if cfg.Table == "" {
		cfg.Table = DefaultTable(cfg.Backend)
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}

	if NeedsPostgres(cfg.Backend) && cfg.DSN == "" {
		return nil, &SetupError{Backend: cfg.Backend, Err: fmt.Errorf("postgres connection string is required")}
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryRepository(cfg), nil
	case BackendSQLite:
		if cfg.DSN == "" {
			cfg.DSN = DefaultSQLiteDSN
		}
		return NewSQLiteRepository(ctx, cfg)
	case BackendPostgres:
		return NewPostgresRepository(ctx, cfg)
	case BackendPgx:
		return NewPgxRepository(ctx, cfg)
	case BackendSqlx:
		return NewSqlxRepository(ctx, cfg)
	case BackendGorm:
		return NewGormRepository(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
