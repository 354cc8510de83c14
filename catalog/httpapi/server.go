package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/agentbridge/catalog"
	"github.com/hupe1980/agentbridge/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ListResponse is the body of GET /products.
type ListResponse struct {
	Items []catalog.Product `json:"items"`
	Count int               `json:"count"`
}

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// MetricsNamespace prefixes the prometheus metric names.
	MetricsNamespace string
}

// Server serves the catalog REST API.
type Server struct {
	store   catalog.Store
	logger  logging.Logger
	metrics *metrics
	router  chi.Router
}

// NewServer builds the router over store.
func NewServer(store catalog.Store, optFns ...func(o *Options)) *Server {
	opts := Options{MetricsNamespace: "catalog"}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		store:   store,
		logger:  logging.OrNoOp(opts.Logger),
		metrics: newMetrics(opts.MetricsNamespace),
	}

	r := chi.NewRouter()
	r.Use(withRequestID, withLogging(s.logger), withMetrics(s.metrics), withRecovery(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/products", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Patch("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in catalog.NewProduct
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := s.store.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Debug("catalog.product.created", "product_id", p.ID, "request_id", RequestIDFromContext(r.Context()))

	w.Header().Set("Location", "/products/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, CodeInvalidQuery, fmt.Sprintf("limit: %v", err))
		return
	}

	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, CodeInvalidQuery, fmt.Sprintf("offset: %v", err))
		return
	}

	items, err := s.store.List(r.Context(), catalog.ListOptions{Query: q.Get("q"), Limit: limit, Offset: offset})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch catalog.ProductPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	p, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON enforces the media type and decodes a single object with unknown
// fields rejected. It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		WriteJSONError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "expected application/json")
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return false
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		WriteJSONError(w, http.StatusBadRequest, CodeInvalidJSON, "body must contain a single JSON object")
		return false
	}

	return true
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}

	return n, nil
}
