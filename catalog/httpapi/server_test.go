package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/catalog"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func TestServer_ProductLifecycle(t *testing.T) {
	srv := NewServer(catalog.NewMemoryStore())

	rec := do(t, srv, http.MethodPost, "/products", `{"name":"Lamp","price":12.5,"stock":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[catalog.Product](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "/products/"+created.ID, rec.Header().Get("Location"))

	rec = do(t, srv, http.MethodGet, "/products/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lamp", decode[catalog.Product](t, rec).Name)

	rec = do(t, srv, http.MethodPatch, "/products/"+created.ID, `{"stock":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), decode[catalog.Product](t, rec).Stock)

	rec = do(t, srv, http.MethodGet, "/products?q=lam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	assert.Equal(t, 1, list.Count)

	rec = do(t, srv, http.MethodDelete, "/products/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/products/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Error)
}

func TestServer_Errors(t *testing.T) {
	srv := NewServer(catalog.NewMemoryStore())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"invalid json", http.MethodPost, "/products", `{"name":`, http.StatusBadRequest, CodeInvalidJSON},
		{"unknown field", http.MethodPost, "/products", `{"name":"x","color":"red"}`, http.StatusBadRequest, CodeInvalidJSON},
		{"trailing data", http.MethodPost, "/products", `{"name":"x"}{}`, http.StatusBadRequest, CodeInvalidJSON},
		{"validation", http.MethodPost, "/products", `{"name":"","price":1}`, http.StatusBadRequest, CodeValidation},
		{"negative price", http.MethodPost, "/products", `{"name":"x","price":-1}`, http.StatusBadRequest, CodeValidation},
		{"bad limit", http.MethodGet, "/products?limit=abc", "", http.StatusBadRequest, CodeInvalidQuery},
		{"bad offset", http.MethodGet, "/products?offset=1.5", "", http.StatusBadRequest, CodeInvalidQuery},
		{"patch missing", http.MethodPatch, "/products/nope", `{"stock":1}`, http.StatusNotFound, CodeNotFound},
		{"delete missing", http.MethodDelete, "/products/nope", "", http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestServer_UnsupportedMediaType(t *testing.T) {
	srv := NewServer(catalog.NewMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, CodeUnsupportedMediaType, decode[ErrorResponse](t, rec).Error)
}

func TestServer_EmptyPatchRejected(t *testing.T) {
	store := catalog.NewMemoryStore()
	p, err := store.Create(context.Background(), catalog.NewProduct{Name: "Desk"})
	require.NoError(t, err)

	rec := do(t, NewServer(store), http.MethodPatch, "/products/"+p.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeValidation, body.Error)
	assert.Contains(t, body.Details, "no fields to update")
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv := NewServer(catalog.NewMemoryStore())

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))

	_ = do(t, srv, http.MethodGet, "/products/abc", "")

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `catalog_http_requests_total{method="GET",route="/products/{id}",status="404"} 1`)
	assert.Contains(t, rec.Body.String(), "catalog_http_request_duration_seconds")
}

func TestServer_RequestID(t *testing.T) {
	srv := NewServer(catalog.NewMemoryStore())

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

type panicStore struct{ catalog.Store }

func (panicStore) Get(context.Context, string) (catalog.Product, error) { panic("boom") }

func (panicStore) List(context.Context, catalog.ListOptions) ([]catalog.Product, error) {
	return nil, errors.New("disk on fire")
}

func TestServer_RecoveryAndInternalErrors(t *testing.T) {
	srv := NewServer(panicStore{})

	rec := do(t, srv, http.MethodGet, "/products/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternal, decode[ErrorResponse](t, rec).Error)

	rec = do(t, srv, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
