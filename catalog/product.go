package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Limits applied to List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var (
	// ErrNotFound is returned when a product id does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalid is wrapped by every ValidationError.
	ErrInvalid = errors.New("invalid product")
)

// Product is a catalog record.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int64     `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProduct is the create payload.
type NewProduct struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
}

// ProductPatch is a partial update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Stock       *int64   `json:"stock,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Stock == nil
}

// ListOptions filters and pages List results.
type ListOptions struct {
	// Query is a case-insensitive substring matched against the name.
	Query  string
	Limit  int
	Offset int
}

// Normalize applies the default and maximum limit and clamps the offset.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Store persists products. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, in NewProduct) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	Update(ctx context.Context, id string, patch ProductPatch) (Product, error)
	Delete(ctx context.Context, id string) error
}

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrInvalid) hold.
func (e *ValidationError) Unwrap() error { return ErrInvalid }
