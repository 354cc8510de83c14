package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps products in a mutex-guarded map.
type MemoryStore struct {
	mu    sync.RWMutex
	m     map[string]Product
	clock *clock
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]Product), clock: newClock()}
}

// Create validates and inserts a new product with a fresh id.
func (s *MemoryStore) Create(_ context.Context, in NewProduct) (Product, error) {
	if err := in.Validate(); err != nil {
		return Product{}, err
	}

	ts := s.clock.next()
	p := Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	s.mu.Lock()
	s.m[p.ID] = p
	s.mu.Unlock()

	return p, nil
}

// Get returns the product or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	if !ok {
		return Product{}, ErrNotFound
	}

	return p, nil
}

// List returns products ordered by creation time, then id.
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]Product, error) {
	opts = opts.Normalize()
	q := strings.ToLower(opts.Query)

	s.mu.RLock()
	all := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if opts.Offset >= len(all) {
		return []Product{}, nil
	}

	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}

	return all[opts.Offset:end], nil
}

// Update applies patch. On validation failure the stored record is unchanged.
func (s *MemoryStore) Update(_ context.Context, id string, patch ProductPatch) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[id]
	if !ok {
		return Product{}, ErrNotFound
	}

	next, err := patch.Apply(cur)
	if err != nil {
		return Product{}, err
	}

	next.UpdatedAt = s.clock.next()

	s.m[id] = next

	return next, nil
}

// Delete removes the product or returns ErrNotFound.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; !ok {
		return ErrNotFound
	}

	delete(s.m, id)

	return nil
}

var _ Store = (*MemoryStore)(nil)
