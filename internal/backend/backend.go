// Package backend defines the contract between the gateway and the search engine.
// Drivers live in sub-packages (elasticsearch, opensearch, memory).
package backend

import (
	"context"
	"encoding/json"
	"time"
)

// Client is the driver facade combining all sub-interfaces.
// Implementations must be safe for concurrent use.
type Client interface {
	Pinger
	IndexManager
	DocumentStore
	Searcher
	Driver() string
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides index lifecycle and mapping operations.
type IndexManager interface {
	// CreateIndex creates an index. body is the create-index request body
	// ({"settings":..., "mappings":...}) or nil.
	CreateIndex(ctx context.Context, name string, body []byte) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// PutMapping merges field declarations into an existing index.
	PutMapping(ctx context.Context, name string, mapping []byte) error
	// GetMapping returns the raw mapping response keyed by index name.
	GetMapping(ctx context.Context, name string) ([]byte, error)
}

// BulkItem is a single document to index. An empty ID lets the backend assign one.
type BulkItem struct {
	ID   string
	Body []byte
}

// BulkStats reports the outcome of a bulk request. Item failures never abort the batch.
type BulkStats struct {
	Indexed int
	Failed  int
	Errors  []string
}

// DocumentStore provides document write and point-read operations.
type DocumentStore interface {
	Bulk(ctx context.Context, index string, items []BulkItem) (BulkStats, error)
	// GetDocument returns the stored _source of a document.
	GetDocument(ctx context.Context, index, id string) ([]byte, error)
}

// Searcher runs hostname queries.
type Searcher interface {
	Search(ctx context.Context, q *Query) (*SearchResult, error)
}

// SearchResult is the output of a search.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Hit is a single matching document.
type Hit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}
