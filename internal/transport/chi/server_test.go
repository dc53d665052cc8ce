package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hostdex/internal/domain"
	healthuc "github.com/kailas-cloud/hostdex/internal/usecase/health"
)

// --- Mocks ---

type mockHostIndex struct {
	calls int

	results   []domain.Document
	searchErr error
	mapping   domain.Mapping
	createErr error
	createCfg domain.IndexConfig
	records   []map[string]any
	bulkErr   error
	doc       domain.Document
	gotIndex  string
	gotArg    string
}

func (m *mockHostIndex) Search(_ context.Context, index, pattern string) ([]domain.Document, error) {
	m.calls++
	m.gotIndex, m.gotArg = index, pattern
	return m.results, m.searchErr
}

func (m *mockHostIndex) GetMapping(_ context.Context, index string) (domain.Mapping, error) {
	m.calls++
	m.gotIndex = index
	return m.mapping, nil
}

func (m *mockHostIndex) CreateIndex(_ context.Context, index string, cfg domain.IndexConfig) error {
	m.calls++
	m.gotIndex, m.createCfg = index, cfg
	return m.createErr
}

func (m *mockHostIndex) BulkIndex(_ context.Context, index string, records []map[string]any) (domain.IngestReport, error) {
	m.calls++
	m.gotIndex, m.records = index, records
	return domain.IngestReport{Received: len(records)}, m.bulkErr
}

func (m *mockHostIndex) GetDocument(_ context.Context, index, id string) (domain.Document, error) {
	m.calls++
	m.gotIndex, m.gotArg = index, id
	return m.doc, nil
}

type mockVerifier struct {
	principal *domain.Principal
	err       error
}

func (m *mockVerifier) Verify(context.Context, string) (*domain.Principal, *jwt.Token, error) {
	return m.principal, nil, m.err
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func activeVerifier() *mockVerifier {
	return &mockVerifier{principal: &domain.Principal{ID: "alice", Active: true}}
}

func newTestRouter(h *mockHostIndex, v TokenVerifier) http.Handler {
	srv := NewServer(h, healthuc.New(okPinger{}, nil), zap.NewNop())
	if v != nil {
		srv.WithVerifier(v)
	}
	return NewRouter(srv, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	req.Header.Set("Authorization", "Bearer test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, target, rr.Body.String(), err)
	}
	return rr, out
}

// --- Validation ---

func TestValidation_NoBackendCalls(t *testing.T) {
	tests := []struct {
		name, method, target, body, msg string
	}{
		{"search no params", "GET", "/search/", "", msgSearchParams},
		{"search no hostname", "GET", "/search/?index_name=hosts", "", msgSearchParams},
		{"search empty hostname", "GET", "/search/?index_name=hosts&hostname=", "", msgSearchParams},
		{"mapping no params", "GET", "/mapping/", "", msgMappingParams},
		{"mapping empty index", "GET", "/mapping?index_name=", "", msgMappingParams},
		{"get-document no id", "GET", "/get-document/?index_name=hosts", "", msgDocumentParams},
		{"get-document no index", "GET", "/get-document/?document_id=1", "", msgDocumentParams},
		{"create-index no name", "POST", "/create-index/", `{"settings":{}}`, msgCreateParams},
		{"create-index empty name", "POST", "/create-index/", `{"index_name":""}`, msgCreateParams},
		{"create-index non-string name", "POST", "/create-index/", `{"index_name":5}`, msgCreateParams},
		{"create-index array body", "POST", "/create-index/", `["hosts"]`, msgCreateParams},
		{"create-index invalid json", "POST", "/create-index/", `{"index_name":`, msgCreateParams},
		{"add-data no data", "POST", "/add-data/", `{"index_name":"hosts"}`, msgAddDataParams},
		{"add-data object data", "POST", "/add-data/", `{"index_name":"hosts","data":{"hostname":"a"}}`, msgAddDataParams},
		{"add-data no index", "POST", "/add-data/", `{"data":[]}`, msgAddDataParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHostIndex{}
			rr, out := do(t, newTestRouter(h, activeVerifier()), tt.method, tt.target, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			if out["error"] != tt.msg {
				t.Errorf("error = %q, want %q", out["error"], tt.msg)
			}
			if h.calls != 0 {
				t.Errorf("expected zero backend calls, got %d", h.calls)
			}
		})
	}
}

// --- Search ---

func TestSearch_Success(t *testing.T) {
	h := &mockHostIndex{results: []domain.Document{{"hostname": "web-01.example.com", "ip": "10.0.0.1"}}}
	rr, out := do(t, newTestRouter(h, nil), "GET", "/search/?index_name=hosts&hostname=web*", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	results, ok := out["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("unexpected results %v", out)
	}
	if h.gotIndex != "hosts" || h.gotArg != "web*" {
		t.Errorf("adapter got %q/%q", h.gotIndex, h.gotArg)
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	rr, out := do(t, newTestRouter(&mockHostIndex{}, nil), "GET", "/search?index_name=hosts&hostname=x", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if results, ok := out["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("expected empty list, got %v", out["results"])
	}
}

func TestSearch_AdapterErrorIs500(t *testing.T) {
	h := &mockHostIndex{searchErr: errors.New("search hosts: index_not_found_exception: no such index [hosts]")}
	rr, out := do(t, newTestRouter(h, nil), "GET", "/search/?index_name=hosts&hostname=x", "")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(out["error"].(string), "no such index") {
		t.Errorf("expected fault message, got %v", out["error"])
	}
}

// --- Mapping ---

func TestMapping_Found(t *testing.T) {
	h := &mockHostIndex{mapping: domain.Mapping{"hosts": map[string]any{"mappings": map[string]any{}}}}
	rr, out := do(t, newTestRouter(h, nil), "GET", "/mapping/?index_name=hosts", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if _, ok := out["mapping"].(map[string]any); !ok {
		t.Errorf("expected mapping object, got %v", out)
	}
}

func TestMapping_AbsentIsNull(t *testing.T) {
	rr, out := do(t, newTestRouter(&mockHostIndex{}, nil), "GET", "/mapping/?index_name=missing", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	v, present := out["mapping"]
	if !present || v != nil {
		t.Errorf("expected mapping null, got %v (present=%v)", v, present)
	}
}

// --- Create index ---

func TestCreateIndex_Success(t *testing.T) {
	h := &mockHostIndex{}
	body := `{"index_name":"hosts","settings":{"number_of_shards":1},"mappings":{"properties":{}}}`
	rr, out := do(t, newTestRouter(h, activeVerifier()), "POST", "/create-index/", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if out["message"] != "Index hosts created successfully." {
		t.Errorf("unexpected message %v", out["message"])
	}
	if !strings.Contains(string(h.createCfg.Settings), "number_of_shards") {
		t.Errorf("settings not forwarded: %s", h.createCfg.Settings)
	}
	if string(h.createCfg.Mappings) != `{"properties":{}}` {
		t.Errorf("mappings not forwarded: %s", h.createCfg.Mappings)
	}
}

func TestCreateIndex_AdapterFailureIs400(t *testing.T) {
	h := &mockHostIndex{createErr: domain.NewBackendError("create_index", errors.New("raw"), "index hosts already exists")}
	rr, out := do(t, newTestRouter(h, activeVerifier()), "POST", "/create-index", `{"index_name":"hosts"}`)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if out["error"] != "index hosts already exists" {
		t.Errorf("unexpected error %v", out["error"])
	}
}

func TestCreateIndex_SettingsMustBeObject(t *testing.T) {
	h := &mockHostIndex{}
	rr, _ := do(t, newTestRouter(h, activeVerifier()), "POST", "/create-index/", `{"index_name":"hosts","settings":[1]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if h.calls != 0 {
		t.Error("adapter must not be called")
	}
}

func TestCreateIndex_FormBody(t *testing.T) {
	h := &mockHostIndex{}
	req := httptest.NewRequest("POST", "/create-index/", strings.NewReader("index_name=hosts"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	newTestRouter(h, activeVerifier()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || h.gotIndex != "hosts" {
		t.Errorf("status = %d index = %q", rr.Code, h.gotIndex)
	}
}

// --- Add data ---

func TestAddData_Success(t *testing.T) {
	h := &mockHostIndex{}
	body := `{"index_name":"hosts","data":[{"hostname":"a.com","ip":["1.1.1.1"]},{"hostname":"b.com"},"junk"]}`
	rr, out := do(t, newTestRouter(h, activeVerifier()), "POST", "/add-data/", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if out["message"] != "Data added to hosts successfully." {
		t.Errorf("unexpected message %v", out["message"])
	}
	if len(h.records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(h.records))
	}
	if h.records[2] != nil {
		t.Errorf("non-object record should be passed as nil, got %v", h.records[2])
	}
}

func TestAddData_EmptyListSucceeds(t *testing.T) {
	h := &mockHostIndex{}
	rr, _ := do(t, newTestRouter(h, activeVerifier()), "POST", "/add-data/", `{"index_name":"hosts","data":[]}`)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestAddData_FailureIs500(t *testing.T) {
	h := &mockHostIndex{bulkErr: domain.NewBackendError("put_mapping", nil, "could not initialize document schema for index hosts")}
	rr, out := do(t, newTestRouter(h, activeVerifier()), "POST", "/add-data/", `{"index_name":"hosts","data":[]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(out["error"].(string), "document schema") {
		t.Errorf("unexpected error %v", out["error"])
	}
}

// --- Get document ---

func TestGetDocument_Found(t *testing.T) {
	h := &mockHostIndex{doc: domain.Document{"hostname": "a.com"}}
	rr, out := do(t, newTestRouter(h, nil), "GET", "/get-document/?index_name=hosts&document_id=abc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	doc := out["document"].(map[string]any)
	if doc["hostname"] != "a.com" || h.gotArg != "abc" {
		t.Errorf("unexpected document %v id %q", doc, h.gotArg)
	}
}

func TestGetDocument_AbsentIs404(t *testing.T) {
	rr, out := do(t, newTestRouter(&mockHostIndex{}, nil), "GET", "/get-document?index_name=hosts&document_id=nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if out["error"] != msgDocNotFound {
		t.Errorf("unexpected error %v", out["error"])
	}
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	rr, out := do(t, newTestRouter(&mockHostIndex{}, nil), "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if out["status"] != "ok" {
		t.Errorf("unexpected status %v", out["status"])
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthCheck_BackendDownIs503(t *testing.T) {
	srv := NewServer(&mockHostIndex{}, healthuc.New(downPinger{}, nil), zap.NewNop())
	rr := httptest.NewRecorder()
	srv.HealthCheck(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

// --- Routing ---

func TestRouter_RequestIDHeader(t *testing.T) {
	rr, _ := do(t, newTestRouter(&mockHostIndex{}, nil), "GET", "/search/", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	h := newTestRouter(&mockHostIndex{}, nil)
	rr, _ := do(t, h, "GET", "/nope/", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	rr, _ = do(t, h, "POST", "/search/", `{}`)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rr := httptest.NewRecorder()
	jsonRecoverer(zap.NewNop())(panicky).ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal error") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}
