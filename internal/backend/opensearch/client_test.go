package opensearch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/hostdex/internal/backend"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{Addrs: []string{srv.URL}, BulkWorkers: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestPing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	c := newTestClient(t, mux)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) })
	c := newTestClient(t, mux)

	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hosts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method: got %s, want PUT", r.Method)
		}
		reply(w, http.StatusBadRequest,
			`{"error":{"type":"resource_already_exists_exception","reason":"index [hosts] already exists"},"status":400}`)
	})
	c := newTestClient(t, mux)

	err := c.CreateIndex(context.Background(), "hosts", []byte(`{"settings":{}}`))
	if !errors.Is(err, backend.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hosts", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	c := newTestClient(t, mux)

	if ok, err := c.IndexExists(context.Background(), "hosts"); err != nil || !ok {
		t.Errorf("hosts: got %v, %v", ok, err)
	}
	if ok, err := c.IndexExists(context.Background(), "missing"); err != nil || ok {
		t.Errorf("missing: got %v, %v", ok, err)
	}
}

func TestGetMapping_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hosts/_mapping", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusNotFound, `{"error":{"type":"index_not_found_exception","reason":"no such index [hosts]"},"status":404}`)
	})
	c := newTestClient(t, mux)

	_, err := c.GetMapping(context.Background(), "hosts")
	if !errors.Is(err, backend.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestGetDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hosts/_doc/1", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"_id":"1","found":true,"_source":{"hostname":"a.com","ip":"1.1.1.1"}}`)
	})
	mux.HandleFunc("/hosts/_doc/2", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusNotFound, `{"_id":"2","found":false}`)
	})
	c := newTestClient(t, mux)

	src, err := c.GetDocument(context.Background(), "hosts", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(src), "a.com") {
		t.Errorf("unexpected source: %s", src)
	}
	if _, err := c.GetDocument(context.Background(), "hosts", "2"); !errors.Is(err, backend.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hosts/_search", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"wildcard"`) {
			t.Errorf("expected wildcard clause, got %s", body)
		}
		reply(w, http.StatusOK, `{"hits":{"total":{"value":2},"hits":[
			{"_id":"1","_source":{"hostname":"a.com"}},{"_id":"2","_source":{"hostname":"ab.com"}}]}}`)
	})
	c := newTestClient(t, mux)

	res, err := c.Search(context.Background(), &backend.Query{Index: "hosts", Field: "hostname", Pattern: "a*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(res.Hits))
	}
}

func TestBulk_PartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hosts/_bulk", func(w http.ResponseWriter, r *http.Request) {
		var items []string
		sc := bufio.NewScanner(r.Body)
		for line := 0; sc.Scan(); line++ {
			if line%2 == 0 {
				continue
			}
			if strings.Contains(sc.Text(), "bad") {
				items = append(items, `{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad ip"}}}`)
			} else {
				items = append(items, `{"index":{"_id":"x","status":201,"result":"created"}}`)
			}
		}
		reply(w, http.StatusOK, `{"took":1,"errors":true,"items":[`+strings.Join(items, ",")+`]}`)
	})
	c := newTestClient(t, mux)

	stats, err := c.Bulk(context.Background(), "hosts", []backend.BulkItem{
		{Body: []byte(`{"hostname":"a.com","ip":"1.1.1.1"}`)},
		{Body: []byte(`{"hostname":"bad.com","ip":"x"}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Indexed != 1 || stats.Failed != 1 {
		t.Errorf("stats: got %+v", stats)
	}
}
