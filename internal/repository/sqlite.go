package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (sqliteDialect) backend() string { return BackendSQLite }

func (sqliteDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		price REAL NOT NULL,
		created_at DATETIME NOT NULL
	)`, table)
}

func (sqliteDialect) insert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (name, price, created_at) VALUES (?, ?, ?)`, table)
}

func (sqliteDialect) selectFirst(table string) string {
	return fmt.Sprintf(`SELECT id, name, price, created_at FROM %s ORDER BY id LIMIT ?`, table)
}

func (sqliteDialect) isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// NewSQLiteRepository opens the embedded engine through the pure Go driver.
// cfg.DSN may be a file path or ":memory:".
func NewSQLiteRepository(ctx context.Context, cfg Config) (*SQLRepository, error) {
	if cfg.DSN == "" {
		cfg.DSN = DefaultSQLiteDSN
	}
	return openSQL(ctx, "sqlite", cfg.DSN, sqliteDialect{}, cfg)
}
