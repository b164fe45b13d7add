package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SqlxRepository maps products with sqlx struct scanning and named queries
// over lib/pq.
type SqlxRepository struct {
	db        *sqlx.DB
	table     string
	pattern   ReadPattern
	readLimit int
}

// NewSqlxRepository connects with sqlx.ConnectContext, which also pings.
func NewSqlxRepository(ctx context.Context, cfg Config) (*SqlxRepository, error) {
	if err := validTable(cfg.Table); err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, &SetupError{Backend: BackendSqlx, Err: fmt.Errorf("failed to connect: %w", err)}
	}
	db.SetMaxOpenConns(1)
	return newSqlxRepository(db, cfg), nil
}

func newSqlxRepository(db *sqlx.DB, cfg Config) *SqlxRepository {
	return &SqlxRepository{
		db:        db,
		table:     cfg.Table,
		pattern:   cfg.ReadPattern,
		readLimit: cfg.ReadLimit,
	}
}

func (r *SqlxRepository) Name() string { return BackendSqlx }

func (r *SqlxRepository) Prepare(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &SetupError{Backend: BackendSqlx, Err: err}
	}
	defer tx.Rollback()

	queries := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, r.table),
		postgresDialect{}.createTable(r.table),
	}
	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return &SetupError{Backend: BackendSqlx, Err: fmt.Errorf("failed to prepare table %s: %w", r.table, err)}
		}
	}
	return tx.Commit()
}

func (r *SqlxRepository) Insert(ctx context.Context, n int) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, price, created_at) VALUES (:name, :price, :created_at)`, r.table)
	for i := 0; i < n; i++ {
		p := newProduct(i)
		if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
			if isPqUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
			}
			return fmt.Errorf("failed to insert %s: %w", p.Name, err)
		}
	}
	return nil
}

func (r *SqlxRepository) Read(ctx context.Context, n int) error {
	query := postgresDialect{}.selectFirst(r.table)
	for i := 0; i < n; i++ {
		var products []Product
		if err := r.db.SelectContext(ctx, &products, query, r.pattern.limit(i, r.readLimit)); err != nil {
			return fmt.Errorf("failed to read products: %w", err)
		}
	}
	return nil
}

func (r *SqlxRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r *SqlxRepository) Average(ctx context.Context, attribute string) (float64, error) {
	if err := checkAttribute(attribute); err != nil {
		return 0, err
	}
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, fmt.Sprintf(`SELECT AVG(%s) FROM %s`, attribute, r.table)); err != nil {
		return 0, fmt.Errorf("failed to average %s: %w", attribute, err)
	}
	if !avg.Valid {
		return 0, ErrEmpty
	}
	return avg.Float64, nil
}

func (r *SqlxRepository) Close() error {
	return r.db.Close()
}
