package repository

import (
	"context"
	"fmt"
)

// MemoryRepository keeps products in a slice. Names are tracked in a set so
// duplicates are rejected the same way the SQL backends reject them.
type MemoryRepository struct {
	products  []Product
	names     map[string]struct{}
	pattern   ReadPattern
	readLimit int
	nextID    int64
}

// NewMemoryRepository returns an empty, prepared in-memory repository.
func NewMemoryRepository(cfg Config) *MemoryRepository {
	return &MemoryRepository{
		names:     make(map[string]struct{}),
		pattern:   cfg.ReadPattern,
		readLimit: cfg.ReadLimit,
	}
}

func (r *MemoryRepository) Name() string { return BackendMemory }

func (r *MemoryRepository) Prepare(ctx context.Context) error {
	r.products = nil
	r.names = make(map[string]struct{})
	r.nextID = 0
	return nil
}

func (r *MemoryRepository) Insert(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := r.insert(newProduct(i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepository) insert(p Product) error {
	if _, ok := r.names[p.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
	}
	r.nextID++
	p.ID = r.nextID
	r.names[p.Name] = struct{}{}
	r.products = append(r.products, p)
	return nil
}

func (r *MemoryRepository) Read(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		_ = r.first(r.pattern.limit(i, r.readLimit))
	}
	return nil
}

// first returns a copy of up to k leading products.
func (r *MemoryRepository) first(k int) []Product {
	if k > len(r.products) {
		k = len(r.products)
	}
	out := make([]Product, k)
	copy(out, r.products[:k])
	return out
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(r.products)), nil
}

func (r *MemoryRepository) Average(ctx context.Context, attribute string) (float64, error) {
	if err := checkAttribute(attribute); err != nil {
		return 0, err
	}
	if len(r.products) == 0 {
		return 0, ErrEmpty
	}
	var sum float64
	for _, p := range r.products {
		sum += p.Price
	}
	return sum / float64(len(r.products)), nil
}

func (r *MemoryRepository) Close() error { return nil }
