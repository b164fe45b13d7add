package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// dialect captures the SQL differences between the database/sql backends.
type dialect interface {
	backend() string
	createTable(table string) string
	insert(table string) string
	selectFirst(table string) string
	isUniqueViolation(err error) bool
}

// SQLRepository implements Repository on top of database/sql. It serves
// the embedded SQLite engine and Postgres through lib/pq.
type SQLRepository struct {
	db        *sql.DB
	dialect   dialect
	table     string
	pattern   ReadPattern
	readLimit int
}

// openSQL opens and pings a single-connection pool for the given driver.
func openSQL(ctx context.Context, driver, dsn string, d dialect, cfg Config) (*SQLRepository, error) {
	if err := validTable(cfg.Table); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &SetupError{Backend: d.backend(), Err: fmt.Errorf("failed to open database: %w", err)}
	}
	// One connection for the whole run. SQLite ":memory:" databases are
	// per-connection, so this is also what keeps the data visible.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &SetupError{Backend: d.backend(), Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	return &SQLRepository{
		db:        db,
		dialect:   d,
		table:     cfg.Table,
		pattern:   cfg.ReadPattern,
		readLimit: cfg.ReadLimit,
	}, nil
}

func (r *SQLRepository) Name() string { return r.dialect.backend() }

func (r *SQLRepository) Prepare(ctx context.Context) error {
	queries := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, r.table),
		r.dialect.createTable(r.table),
	}
	for _, query := range queries {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return &SetupError{Backend: r.Name(), Err: fmt.Errorf("failed to prepare table %s: %w", r.table, err)}
		}
	}
	slog.Debug("table prepared", "backend", r.Name(), "table", r.table)
	return nil
}

func (r *SQLRepository) Insert(ctx context.Context, n int) error {
	stmt, err := r.db.PrepareContext(ctx, r.dialect.insert(r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		p := newProduct(i)
		if _, err := stmt.ExecContext(ctx, p.Name, p.Price, p.CreatedAt); err != nil {
			if r.dialect.isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
			}
			return fmt.Errorf("failed to insert %s: %w", p.Name, err)
		}
	}
	return nil
}

func (r *SQLRepository) Read(ctx context.Context, n int) error {
	query := r.dialect.selectFirst(r.table)
	for i := 0; i < n; i++ {
		if _, err := r.first(ctx, query, r.pattern.limit(i, r.readLimit)); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) first(ctx context.Context, query string, limit int) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	defer rows.Close()

	var results []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) Average(ctx context.Context, attribute string) (float64, error) {
	if err := checkAttribute(attribute); err != nil {
		return 0, err
	}
	var avg sql.NullFloat64
	query := fmt.Sprintf(`SELECT AVG(%s) FROM %s`, attribute, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to average %s: %w", attribute, err)
	}
	if !avg.Valid {
		return 0, ErrEmpty
	}
	return avg.Float64, nil
}

// Close closes the database connection
func (r *SQLRepository) Close() error {
	return r.db.Close()
}
