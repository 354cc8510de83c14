package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/catalog/client"
	"github.com/hupe1980/agentbridge/catalog/httpapi"
)

// Catalog is a running catalog API backed by an in-memory store.
type Catalog struct {
	Store  *catalog.MemoryStore
	Server *httptest.Server
	Client *client.Client
}

// NewCatalog starts a catalog API for the duration of the test.
func NewCatalog(t testing.TB) *Catalog {
	t.Helper()

	store := catalog.NewMemoryStore()
	srv := httptest.NewServer(httpapi.NewServer(store))
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatalf("catalog client: %v", err)
	}

	return &Catalog{Store: store, Server: srv, Client: c}
}

// Seed inserts a product directly into the store.
func (c *Catalog) Seed(t testing.TB, in catalog.NewProduct) catalog.Product {
	t.Helper()

	p, err := c.Store.Create(t.Context(), in)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	return p
}
