package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteDriverName is the database/sql driver OpenSQLite uses. It is go-sqlite3
// with a go_lower SQL function registered on every connection, so name search
// folds case the way MemoryStore does rather than ASCII only.
const SQLiteDriverName = "sqlite3_catalog"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_lower", strings.ToLower, true)
		},
	})
}

const createProductsTableSQL = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price REAL NOT NULL,
    stock INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

const createProductsCreatedIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at, id)`

const productColumns = `id, name, description, price, stock, created_at, updated_at`

// SQLiteStore persists products with database/sql and the go-sqlite3 driver.
// Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db    *sql.DB
	clock *clock
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(SQLiteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// A single connection keeps ":memory:" databases coherent and avoids
	// "database is locked" under concurrent writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// NewSQLiteStore wraps an existing connection and ensures the schema. The
// connection must be opened with SQLiteDriverName.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	s := &SQLiteStore{db: db, clock: newClock()}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createProductsTableSQL); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createProductsCreatedIndexSQL); err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create validates and inserts a new product with a fresh id.
func (s *SQLiteStore) Create(ctx context.Context, in NewProduct) (Product, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, ts.UnixNano(), ts.UnixNano())
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	return p, nil
}

// Get returns the product or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Product, error) {
	return s.get(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryer, id string) (Product, error) {
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}

	return p, nil
}

// List returns products ordered by creation time, then id.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	opts = opts.Normalize()

	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}

	if opts.Query != "" {
		query += ` WHERE go_lower(name) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(opts.Query))+"%")
	}

	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// Update applies patch in a transaction. On validation failure nothing is written.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := s.get(ctx, tx, id)
	if err != nil {
		return Product{}, err
	}

	next, err := patch.Apply(cur)
	if err != nil {
		return Product{}, err
	}

	next.UpdatedAt = s.clock.next()

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, stock = ?, updated_at = ? WHERE id = ?`,
		next.Name, next.Description, next.Price, next.Stock, next.UpdatedAt.UnixNano(), id)
	if err != nil {
		return Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return Product{}, fmt.Errorf("commit update: %w", err)
	}

	return next, nil
}

// Delete removes the product or returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (Product, error) {
	var (
		p                Product
		created, updated int64
	)

	if err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &created, &updated); err != nil {
		return Product{}, err
	}

	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()

	return p, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ Store = (*SQLiteStore)(nil)
