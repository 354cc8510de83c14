package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/catalog/httpapi"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	srv := httptest.NewServer(httpapi.NewServer(catalog.NewMemoryStore()))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	return c
}

func ptr[T any](v T) *T { return &v }

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.Health(ctx))

	p, err := c.CreateProduct(ctx, catalog.NewProduct{Name: "Mug", Price: 8, Stock: 10})
	require.NoError(t, err)

	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)

	_, err = c.CreateProduct(ctx, catalog.NewProduct{Name: "Mug Large", Price: 9})
	require.NoError(t, err)

	list, err := c.ListProducts(ctx, catalog.ListOptions{Query: "mug", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, p.ID, list.Items[0].ID)

	updated, err := c.UpdateProduct(ctx, p.ID, catalog.ProductPatch{Price: ptr(7.5)})
	require.NoError(t, err)
	assert.Equal(t, 7.5, updated.Price)

	require.NoError(t, c.DeleteProduct(ctx, p.ID))

	_, err = c.GetProduct(ctx, p.ID)
	assert.True(t, IsNotFound(err))
}

func TestClient_APIErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateProduct(ctx, catalog.NewProduct{Name: "x", Price: -3})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, "catalog api: 400 validation_error: price must be >= 0", apiErr.Error())

	err = c.DeleteProduct(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestClient_NonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.GetProduct(context.Background(), "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad_gateway", apiErr.Code)
	assert.Equal(t, "upstream exploded", apiErr.Details)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	err = c.Health(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}
