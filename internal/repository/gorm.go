package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormProduct is the ORM model. The table name is overridden per query so
// Config.Table still applies. Column types are pinned to the ones the
// other SQL backends create; gorm would otherwise pick decimal and
// timestamptz.
type gormProduct struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"not null;unique"`
	Price     float64   `gorm:"type:double precision;not null"`
	CreatedAt time.Time `gorm:"type:timestamp;not null"`
}

func (gormProduct) TableName() string { return DefaultTable(BackendGorm) }

// GormRepository goes through gorm's model layer: schema migration,
// Create per record, Find into model slices.
type GormRepository struct {
	db        *gorm.DB
	table     string
	pattern   ReadPattern
	readLimit int
}

// NewGormRepository opens Postgres through gorm's pgx-based driver.
func NewGormRepository(ctx context.Context, cfg Config) (*GormRepository, error) {
	if err := validTable(cfg.Table); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), gormConfig())
	if err != nil {
		return nil, &SetupError{Backend: BackendGorm, Err: fmt.Errorf("failed to open database: %w", err)}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &SetupError{Backend: BackendGorm, Err: err}
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &SetupError{Backend: BackendGorm, Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	return newGormRepository(db, cfg), nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	}
}

func newGormRepository(db *gorm.DB, cfg Config) *GormRepository {
	return &GormRepository{
		db:        db,
		table:     cfg.Table,
		pattern:   cfg.ReadPattern,
		readLimit: cfg.ReadLimit,
	}
}

func (r *GormRepository) Name() string { return BackendGorm }

func (r *GormRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

func (r *GormRepository) Prepare(ctx context.Context) error {
	m := r.scoped(ctx).Migrator()
	if err := m.DropTable(r.table); err != nil {
		return &SetupError{Backend: BackendGorm, Err: fmt.Errorf("failed to drop table %s: %w", r.table, err)}
	}
	if err := m.CreateTable(&gormProduct{}); err != nil {
		return &SetupError{Backend: BackendGorm, Err: fmt.Errorf("failed to create table %s: %w", r.table, err)}
	}
	return nil
}

func (r *GormRepository) Insert(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		p := newProduct(i)
		model := gormProduct{Name: p.Name, Price: p.Price, CreatedAt: p.CreatedAt}
		if err := r.scoped(ctx).Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isPgxUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
			}
			return fmt.Errorf("failed to insert %s: %w", p.Name, err)
		}
	}
	return nil
}

func (r *GormRepository) Read(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		var products []gormProduct
		err := r.scoped(ctx).Order("id").Limit(r.pattern.limit(i, r.readLimit)).Find(&products).Error
		if err != nil {
			return fmt.Errorf("failed to read products: %w", err)
		}
	}
	return nil
}

func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.scoped(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r *GormRepository) Average(ctx context.Context, attribute string) (float64, error) {
	if err := checkAttribute(attribute); err != nil {
		return 0, err
	}
	var avg sql.NullFloat64
	if err := r.scoped(ctx).Select("AVG(" + attribute + ")").Row().Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to average %s: %w", attribute, err)
	}
	if !avg.Valid {
		return 0, ErrEmpty
	}
	return avg.Float64, nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
