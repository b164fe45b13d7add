package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Product is the record every backend stores.
type Product struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Repository is the capability set shared by all storage backends.
type Repository interface {
	// Name identifies the backend in reports.
	Name() string
	// Prepare drops and recreates the products table.
	Prepare(ctx context.Context) error
	// Insert creates n synthetic products.
	Insert(ctx context.Context, n int) error
	// Read issues n bounded reads and discards the rows.
	Read(ctx context.Context, n int) error
	Count(ctx context.Context) (int64, error)
	// Average returns the mean of a numeric attribute. Only "price" is numeric.
	Average(ctx context.Context, attribute string) (float64, error)
	Close() error
}

var (
	// ErrDuplicateName is returned when an insert collides with an existing name.
	ErrDuplicateName = errors.New("duplicate product name")
	// ErrEmpty is returned by Average when there are no products.
	ErrEmpty = errors.New("no products to average")
	// ErrUnknownAttribute is returned by Average for non-numeric or unknown attributes.
	ErrUnknownAttribute = errors.New("unknown numeric attribute")
	// ErrUnknownBackend is returned by New for an unsupported backend key.
	ErrUnknownBackend = errors.New("unsupported backend")
)

// SetupError reports that a backend could not be reached or initialised.
// It is fatal and never retried.
type SetupError struct {
	Backend string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s setup failed: %v", e.Backend, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ReadPattern selects how many rows each Read call fetches.
type ReadPattern int

const (
	// FixedWindow fetches the first ReadLimit rows on every call.
	FixedWindow ReadPattern = iota
	// GrowingWindow fetches the first i+1 rows on call i.
	GrowingWindow
)

// ParseReadPattern maps "fixed" and "growing" to a ReadPattern.
func ParseReadPattern(s string) (ReadPattern, error) {
	switch s {
	case "", "fixed":
		return FixedWindow, nil
	case "growing":
		return GrowingWindow, nil
	default:
		return FixedWindow, fmt.Errorf("unknown read pattern: %s", s)
	}
}

func (p ReadPattern) String() string {
	if p == GrowingWindow {
		return "growing"
	}
	return "fixed"
}

// DefaultReadLimit is the window size for FixedWindow reads.
const DefaultReadLimit = 10

// limit returns the row limit for the i-th read call.
func (p ReadPattern) limit(i, fixed int) int {
	if p == GrowingWindow {
		return i + 1
	}
	if fixed <= 0 {
		return DefaultReadLimit
	}
	return fixed
}

// productName is the deterministic name of the i-th inserted product.
func productName(i int) string {
	return fmt.Sprintf("product #%d", i)
}

// productPrice is the deterministic price of the i-th inserted product.
func productPrice(i int) float64 {
	return float64(i) * 100
}

func newProduct(i int) Product {
	return Product{
		Name:      productName(i),
		Price:     productPrice(i),
		CreatedAt: time.Now(),
	}
}

func checkAttribute(attribute string) error {
	if attribute != "price" {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
	return nil
}
