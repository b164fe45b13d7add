package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxConn is the part of *pgx.Conn the repository uses.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// PgxRepository talks to Postgres over pgx's native protocol on a single
// connection, without database/sql in between.
type PgxRepository struct {
	conn      pgxConn
	table     string
	pattern   ReadPattern
	readLimit int
}

// NewPgxRepository connects with pgx.Connect.
func NewPgxRepository(ctx context.Context, cfg Config) (*PgxRepository, error) {
	if err := validTable(cfg.Table); err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, &SetupError{Backend: BackendPgx, Err: fmt.Errorf("failed to connect with pgx: %w", err)}
	}
	return newPgxRepository(conn, cfg), nil
}

func newPgxRepository(conn pgxConn, cfg Config) *PgxRepository {
	return &PgxRepository{
		conn:      conn,
		table:     cfg.Table,
		pattern:   cfg.ReadPattern,
		readLimit: cfg.ReadLimit,
	}
}

func (r *PgxRepository) Name() string { return BackendPgx }

func (r *PgxRepository) Prepare(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, r.table)); err != nil {
		return &SetupError{Backend: BackendPgx, Err: fmt.Errorf("failed to drop table %s: %w", r.table, err)}
	}
	if _, err := r.conn.Exec(ctx, postgresDialect{}.createTable(r.table)); err != nil {
		return &SetupError{Backend: BackendPgx, Err: fmt.Errorf("failed to create table %s: %w", r.table, err)}
	}
	return nil
}

func (r *PgxRepository) Insert(ctx context.Context, n int) error {
	query := postgresDialect{}.insert(r.table)
	for i := 0; i < n; i++ {
		p := newProduct(i)
		if _, err := r.conn.Exec(ctx, query, p.Name, p.Price, p.CreatedAt); err != nil {
			if isPgxUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
			}
			return fmt.Errorf("failed to insert %s: %w", p.Name, err)
		}
	}
	return nil
}

func (r *PgxRepository) Read(ctx context.Context, n int) error {
	query := postgresDialect{}.selectFirst(r.table)
	for i := 0; i < n; i++ {
		rows, err := r.conn.Query(ctx, query, r.pattern.limit(i, r.readLimit))
		if err != nil {
			return fmt.Errorf("failed to read products: %w", err)
		}
		if _, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product]); err != nil {
			return fmt.Errorf("failed to collect products: %w", err)
		}
	}
	return nil
}

func (r *PgxRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r *PgxRepository) Average(ctx context.Context, attribute string) (float64, error) {
	if err := checkAttribute(attribute); err != nil {
		return 0, err
	}
	var avg *float64
	err := r.conn.QueryRow(ctx, fmt.Sprintf(`SELECT AVG(%s) FROM %s`, attribute, r.table)).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average %s: %w", attribute, err)
	}
	if avg == nil {
		return 0, ErrEmpty
	}
	return *avg, nil
}

func (r *PgxRepository) Close() error {
	return r.conn.Close(context.Background())
}

func isPgxUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
