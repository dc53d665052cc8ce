// Package memory implements backend.Client on in-memory bleve indexes.
// Intended for local development and embedded use; nothing is persisted.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/kailas-cloud/hostdex/internal/backend"
	"github.com/kailas-cloud/hostdex/internal/domain/host"
)

// DriverName identifies this driver in config and metrics.
const DriverName = "memory"

// Compile-time check: Client implements backend.Client.
var _ backend.Client = (*Client)(nil)

// Client keeps one bleve mem-only index per logical index.
type Client struct {
	mu      sync.RWMutex
	indexes map[string]*memIndex
	closed  bool
}

type memIndex struct {
	idx bleve.Index

	mu       sync.RWMutex
	mappings map[string]json.RawMessage // declared properties, for GetMapping
	sources  map[string]json.RawMessage
}

// New creates an empty in-memory backend.
func New() *Client {
	return &Client{indexes: make(map[string]*memIndex)}
}

// Driver returns the driver name.
func (c *Client) Driver() string { return DriverName }

// Ping fails only after Close.
func (c *Client) Ping(context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return &backend.Error{Op: backend.OpPing, Err: errors.New("client closed")}
	}
	return nil
}

// Close closes every index.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, mi := range c.indexes {
		_ = mi.idx.Close()
	}
	c.indexes = map[string]*memIndex{}
	c.closed = true
}

// WaitForReady returns immediately; an in-memory backend is always ready.
func (c *Client) WaitForReady(ctx context.Context, _ time.Duration) error {
	return c.Ping(ctx)
}

// CreateIndex creates a new index. body follows the REST create-index shape.
func (c *Client) CreateIndex(_ context.Context, name string, body []byte) error {
	var req struct {
		Mappings struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"mappings"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return &backend.Error{
				Op: backend.OpCreateIndex, Status: http.StatusBadRequest,
				Err: fmt.Errorf("%w: %w", backend.ErrBadRequest, err),
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.indexes[name]; ok {
		return &backend.Error{
			Op: backend.OpCreateIndex, Status: http.StatusBadRequest,
			Err: fmt.Errorf("%w: index [%s]", backend.ErrIndexExists, name),
		}
	}

	mi, err := newMemIndex(req.Mappings.Properties)
	if err != nil {
		return &backend.Error{Op: backend.OpCreateIndex, Err: err}
	}
	c.indexes[name] = mi
	return nil
}

// IndexExists reports whether the index exists.
func (c *Client) IndexExists(_ context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.indexes[name]
	return ok, nil
}

// PutMapping merges declared properties into an existing index.
func (c *Client) PutMapping(_ context.Context, name string, body []byte) error {
	mi, err := c.get(backend.OpPutMapping, name)
	if err != nil {
		return err
	}

	var m struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return &backend.Error{
			Op: backend.OpPutMapping, Status: http.StatusBadRequest,
			Err: fmt.Errorf("%w: %w", backend.ErrBadRequest, err),
		}
	}

	mi.mu.Lock()
	defer mi.mu.Unlock()
	for k, v := range m.Properties {
		mi.mappings[k] = v
	}
	return nil
}

// GetMapping returns the declared mapping in the REST response shape.
func (c *Client) GetMapping(_ context.Context, name string) ([]byte, error) {
	mi, err := c.get(backend.OpGetMapping, name)
	if err != nil {
		return nil, err
	}

	mi.mu.RLock()
	defer mi.mu.RUnlock()

	mappings := map[string]any{}
	if len(mi.mappings) > 0 {
		mappings["properties"] = mi.mappings
	}
	return json.Marshal(map[string]any{name: map[string]any{"mappings": mappings}})
}

// Bulk indexes items one by one, creating the index on first write.
func (c *Client) Bulk(ctx context.Context, index string, items []backend.BulkItem) (backend.BulkStats, error) {
	var stats backend.BulkStats
	if len(items) == 0 {
		return stats, nil
	}

	mi, err := c.getOrCreate(index)
	if err != nil {
		return stats, &backend.Error{Op: backend.OpBulk, Err: err}
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return stats, &backend.Error{Op: backend.OpBulk, Err: err}
		}
		if err := mi.put(it); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err.Error())
			continue
		}
		stats.Indexed++
	}
	return stats, nil
}

// GetDocument returns the stored source of a document.
func (c *Client) GetDocument(_ context.Context, index, id string) ([]byte, error) {
	mi, err := c.get(backend.OpGetDocument, index)
	if err != nil {
		return nil, err
	}

	mi.mu.RLock()
	defer mi.mu.RUnlock()
	src, ok := mi.sources[id]
	if !ok {
		return nil, &backend.Error{Op: backend.OpGetDocument, Status: http.StatusNotFound, Err: backend.ErrDocumentNotFound}
	}
	return src, nil
}

// Search runs a wildcard OR match disjunction on the query field.
func (c *Client) Search(_ context.Context, q *backend.Query) (*backend.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Status: http.StatusBadRequest, Err: err}
	}
	mi, err := c.get(backend.OpSearch, q.Index)
	if err != nil {
		return nil, err
	}

	wildcard := bleve.NewWildcardQuery(q.Pattern)
	wildcard.SetField(q.Field)
	match := bleve.NewMatchQuery(q.Pattern)
	match.SetField(q.Field)

	size := q.Size
	if size <= 0 {
		size = backend.DefaultSearchSize
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(wildcard, match), size, 0, false)

	res, err := mi.idx.Search(req)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Status: http.StatusInternalServerError, Err: err}
	}

	mi.mu.RLock()
	defer mi.mu.RUnlock()

	out := &backend.SearchResult{Total: int(res.Total), Hits: make([]backend.Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		src, ok := mi.sources[h.ID]
		if !ok {
			continue
		}
		out.Hits = append(out.Hits, backend.Hit{ID: h.ID, Score: h.Score, Source: src})
	}
	return out, nil
}

func (c *Client) get(op, name string) (*memIndex, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mi, ok := c.indexes[name]
	if !ok {
		return nil, &backend.Error{
			Op: op, Status: http.StatusNotFound,
			Err: fmt.Errorf("%w: no such index [%s]", backend.ErrIndexNotFound, name),
		}
	}
	return mi, nil
}

func (c *Client) getOrCreate(name string) (*memIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mi, ok := c.indexes[name]; ok {
		return mi, nil
	}
	mi, err := newMemIndex(nil)
	if err != nil {
		return nil, err
	}
	c.indexes[name] = mi
	return mi, nil
}

func newMemIndex(properties map[string]json.RawMessage) (*memIndex, error) {
	idx, err := bleve.NewMemOnly(hostIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	if properties == nil {
		properties = map[string]json.RawMessage{}
	}
	return &memIndex{
		idx:      idx,
		mappings: properties,
		sources:  make(map[string]json.RawMessage),
	}, nil
}

func (mi *memIndex) put(it backend.BulkItem) error {
	var doc map[string]any
	if err := json.Unmarshal(it.Body, &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	id := it.ID
	if id == "" {
		id = uuid.NewString()
	}
	// The source is visible before the index entry so a hit always has one.
	mi.mu.Lock()
	prev, existed := mi.sources[id]
	mi.sources[id] = append(json.RawMessage(nil), it.Body...)
	mi.mu.Unlock()

	if err := mi.idx.Index(id, doc); err != nil {
		mi.mu.Lock()
		if existed {
			mi.sources[id] = prev
		} else {
			delete(mi.sources, id)
		}
		mi.mu.Unlock()
		return fmt.Errorf("index document %s: %w", id, err)
	}
	return nil
}

// hostIndexMapping analyzes hostname with the standard analyzer and keeps ip verbatim.
func hostIndexMapping() mapping.IndexMapping {
	hostname := bleve.NewTextFieldMapping()
	hostname.Analyzer = "standard"

	ip := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(host.FieldHostname, hostname)
	doc.AddFieldMappingsAt(host.FieldIP, ip)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}
