package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQLite(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_CreateGet(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			p, err := s.Create(ctx, NewProduct{Name: "  Lamp ", Price: 19.5, Stock: 3})
			require.NoError(t, err)
			assert.NotEmpty(t, p.ID)
			assert.Equal(t, "Lamp", p.Name)
			assert.False(t, p.CreatedAt.IsZero())

			got, err := s.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, p.ID, got.ID)
			assert.Equal(t, 19.5, got.Price)
			assert.Equal(t, int64(3), got.Stock)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    NewProduct
		field string
	}{
		{"blank name", NewProduct{Name: "   ", Price: 1}, "name"},
		{"negative price", NewProduct{Name: "x", Price: -1}, "price"},
		{"negative stock", NewProduct{Name: "x", Stock: -2}, "stock"},
	}

	for name, newStore := range storeFactories(t) {
		s := newStore()
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				_, err := s.Create(context.Background(), tt.in)
				assert.ErrorIs(t, err, ErrInvalid)

				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.field, vErr.Field)
			})
		}
	}
}

func TestStore_Update(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			p, err := s.Create(ctx, NewProduct{Name: "Chair", Price: 40, Stock: 1})
			require.NoError(t, err)

			updated, err := s.Update(ctx, p.ID, ProductPatch{Stock: ptr(int64(8)), Description: ptr("oak")})
			require.NoError(t, err)
			assert.Equal(t, int64(8), updated.Stock)
			assert.Equal(t, "oak", updated.Description)
			assert.Equal(t, "Chair", updated.Name)
			assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))

			_, err = s.Update(ctx, p.ID, ProductPatch{})
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), "no fields to update")

			_, err = s.Update(ctx, p.ID, ProductPatch{Price: ptr(-5.0)})
			require.ErrorIs(t, err, ErrInvalid)

			// rejected update leaves the record unchanged
			got, err := s.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 40.0, got.Price)
			assert.Equal(t, int64(8), got.Stock)

			_, err = s.Update(ctx, "missing", ProductPatch{Stock: ptr(int64(1))})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			p, err := s.Create(ctx, NewProduct{Name: "Desk", Price: 100})
			require.NoError(t, err)

			require.NoError(t, s.Delete(ctx, p.ID))
			assert.ErrorIs(t, s.Delete(ctx, p.ID), ErrNotFound)

			_, err = s.Get(ctx, p.ID)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			for i := 0; i < 5; i++ {
				_, err := s.Create(ctx, NewProduct{Name: fmt.Sprintf("Widget %d", i), Price: float64(i)})
				require.NoError(t, err)
			}
			_, err := s.Create(ctx, NewProduct{Name: "Gadget_x", Price: 1})
			require.NoError(t, err)

			all, err := s.List(ctx, ListOptions{})
			require.NoError(t, err)
			assert.Len(t, all, 6)
			assert.Equal(t, "Widget 0", all[0].Name)

			widgets, err := s.List(ctx, ListOptions{Query: "WIDGET"})
			require.NoError(t, err)
			assert.Len(t, widgets, 5)

			_, err = s.Create(ctx, NewProduct{Name: "Äpfel", Price: 2})
			require.NoError(t, err)
			apples, err := s.List(ctx, ListOptions{Query: "äPFEL"})
			require.NoError(t, err)
			require.Len(t, apples, 1)
			assert.Equal(t, "Äpfel", apples[0].Name)

			// underscore is matched literally
			gadgets, err := s.List(ctx, ListOptions{Query: "t_x"})
			require.NoError(t, err)
			assert.Len(t, gadgets, 1)

			page, err := s.List(ctx, ListOptions{Limit: 2, Offset: 1})
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, all[1].ID, page[0].ID)

			clamped, err := s.List(ctx, ListOptions{Limit: 1, Offset: -4})
			require.NoError(t, err)
			require.Len(t, clamped, 1)
			assert.Equal(t, all[0].ID, clamped[0].ID)

			empty, err := s.List(ctx, ListOptions{Offset: 100})
			require.NoError(t, err)
			assert.Empty(t, empty)
			assert.NotNil(t, empty)
		})
	}
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ListOptions{}.Normalize().Limit)
	assert.Equal(t, MaxListLimit, ListOptions{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 0, ListOptions{Offset: -3}.Normalize().Offset)
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Create(context.Background(), NewProduct{Name: fmt.Sprintf("p%d", i)})
		}(i)
	}
	wg.Wait()

	all, err := s.List(context.Background(), ListOptions{Limit: MaxListLimit})
	require.NoError(t, err)
	assert.Len(t, all, 50)
}
