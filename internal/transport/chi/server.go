package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hostdex/internal/domain"
	logpkg "github.com/kailas-cloud/hostdex/internal/logger"
	healthuc "github.com/kailas-cloud/hostdex/internal/usecase/health"
)

// Client-facing messages. Validation messages are part of the public contract.
const (
	msgSearchParams   = "Both index_name and hostname are required."
	msgMappingParams  = "index_name parameter is required."
	msgCreateParams   = "Index name is required."
	msgAddDataParams  = "Invalid index name or data format."
	msgDocumentParams = "Index name and document ID are required."
	msgDocNotFound    = "Document not found."
)

// HostIndex is the consumer interface for the search client adapter (ISP).
type HostIndex interface {
	Search(ctx context.Context, index, pattern string) ([]domain.Document, error)
	GetMapping(ctx context.Context, index string) (domain.Mapping, error)
	CreateIndex(ctx context.Context, index string, cfg domain.IndexConfig) error
	BulkIndex(ctx context.Context, index string, records []map[string]any) (domain.IngestReport, error)
	GetDocument(ctx context.Context, index, id string) (domain.Document, error)
}

// Server holds the HTTP handlers of the gateway.
type Server struct {
	hosts        HostIndex
	health       *healthuc.Service
	verifier     TokenVerifier
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewServer creates an HTTP API server.
func NewServer(hosts HostIndex, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{
		hosts:        hosts,
		health:       health,
		logger:       logger,
		maxBodyBytes: 32 << 20,
	}
}

// WithMaxBodyBytes limits POST body size.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// WithVerifier sets the token verifier used by the write endpoints.
// Without one every write request is rejected as unauthenticated.
func (s *Server) WithVerifier(v TokenVerifier) *Server {
	s.verifier = v
	return s
}

// Search handles GET /search/.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	index, okIndex := queryParam(r, "index_name")
	pattern, okPattern := queryParam(r, "hostname")
	if !okIndex || !okPattern {
		writeError(w, http.StatusBadRequest, msgSearchParams)
		return
	}

	results, err := s.hosts.Search(r.Context(), index, pattern)
	if err != nil {
		s.backendError(w, r, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Mapping handles GET /mapping/.
func (s *Server) Mapping(w http.ResponseWriter, r *http.Request) {
	index, ok := queryParam(r, "index_name")
	if !ok {
		writeError(w, http.StatusBadRequest, msgMappingParams)
		return
	}

	mapping, err := s.hosts.GetMapping(r.Context(), index)
	if err != nil {
		s.backendError(w, r, http.StatusInternalServerError, err)
		return
	}
	// A nil mapping encodes as null.
	writeJSON(w, http.StatusOK, map[string]any{"mapping": mapping})
}

// CreateIndex handles POST /create-index/.
func (s *Server) CreateIndex(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgCreateParams)
		return
	}
	index, ok := stringField(body, "index_name")
	if !ok {
		writeError(w, http.StatusBadRequest, msgCreateParams)
		return
	}

	cfg, err := indexConfig(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r, ok = s.authenticate(w, r)
	if !ok {
		return
	}

	if err := s.hosts.CreateIndex(r.Context(), index, cfg); err != nil {
		s.backendError(w, r, http.StatusBadRequest, err)
		return
	}
	logpkg.FromContext(r.Context()).Info("index created", zap.String("index", index))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Index %s created successfully.", index),
	})
}

// AddData handles POST /add-data/.
func (s *Server) AddData(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgAddDataParams)
		return
	}
	index, okIndex := stringField(body, "index_name")
	data, okData := body["data"].([]any)
	if !okIndex || !okData {
		writeError(w, http.StatusBadRequest, msgAddDataParams)
		return
	}

	r, ok = s.authenticate(w, r)
	if !ok {
		return
	}

	records := make([]map[string]any, len(data))
	for i, item := range data {
		records[i], _ = item.(map[string]any)
	}

	report, err := s.hosts.BulkIndex(r.Context(), index, records)
	if err != nil {
		s.backendError(w, r, http.StatusInternalServerError, err)
		return
	}
	logpkg.FromContext(r.Context()).Info("data added",
		zap.String("index", index),
		zap.Int("received", report.Received),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Data added to %s successfully.", index),
	})
}

// GetDocument handles GET /get-document/.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	index, okIndex := queryParam(r, "index_name")
	id, okID := queryParam(r, "document_id")
	if !okIndex || !okID {
		writeError(w, http.StatusBadRequest, msgDocumentParams)
		return
	}

	doc, err := s.hosts.GetDocument(r.Context(), index, id)
	if err != nil {
		s.backendError(w, r, http.StatusInternalServerError, err)
		return
	}
	if len(doc) == 0 {
		writeError(w, http.StatusNotFound, msgDocNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// backendError writes an adapter failure with the endpoint's status.
// Only the short message crosses the boundary; the cause is logged.
func (s *Server) backendError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logpkg.FromContext(r.Context()).Warn("backend error", zap.Error(err), zap.Int("status", status))

	msg := err.Error()
	var be *domain.BackendError
	if errors.As(err, &be) {
		msg = be.Message
	}
	writeError(w, status, msg)
}

// queryParam binds a single form-style query parameter. Empty values count as missing.
func queryParam(r *http.Request, name string) (string, bool) {
	var v *string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil || v == nil {
		return "", false
	}
	return *v, *v != ""
}

// decodeBody reads a JSON object or a urlencoded form into a field map.
// It returns false for anything else.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, false
		}
		body := make(map[string]any, len(r.PostForm))
		for k := range r.PostForm {
			body[k] = r.PostForm.Get(k)
		}
		return body, true
	}

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return body, true
}

func stringField(body map[string]any, key string) (string, bool) {
	v, ok := body[key].(string)
	return v, ok && v != ""
}

// indexConfig extracts the optional settings and mappings objects.
func indexConfig(body map[string]any) (domain.IndexConfig, error) {
	var cfg domain.IndexConfig
	for key, dst := range map[string]*json.RawMessage{"settings": &cfg.Settings, "mappings": &cfg.Mappings} {
		v, ok := body[key]
		if !ok || v == nil {
			continue
		}
		if _, isObj := v.(map[string]any); !isObj {
			return cfg, fmt.Errorf("%s must be an object", key)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", key, err)
		}
		*dst = raw
	}
	return cfg, nil
}
