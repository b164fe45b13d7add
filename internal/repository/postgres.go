package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE Postgres reports for a unique constraint.
const uniqueViolation = "23505"

type postgresDialect struct{}

func (postgresDialect) backend() string { return BackendPostgres }

func (postgresDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		price DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`, table)
}

func (postgresDialect) insert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (name, price, created_at) VALUES ($1, $2, $3)`, table)
}

func (postgresDialect) selectFirst(table string) string {
	return fmt.Sprintf(`SELECT id, name, price, created_at FROM %s ORDER BY id LIMIT $1`, table)
}

func (postgresDialect) isUniqueViolation(err error) bool {
	return isPqUniqueViolation(err)
}

func isPqUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// NewPostgresRepository connects to a networked Postgres through lib/pq.
func NewPostgresRepository(ctx context.Context, cfg Config) (*SQLRepository, error) {
	return openSQL(ctx, "postgres", cfg.DSN, postgresDialect{}, cfg)
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validTable guards the table names that are interpolated into SQL.
func validTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("invalid table name: %q", name)
	}
	return nil
}
