// Package elasticsearch implements backend.Client on go-elasticsearch v8.
package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/kailas-cloud/hostdex/internal/backend"
)

// DriverName identifies this driver in config and metrics.
const DriverName = "elasticsearch"

// Compile-time check: Client implements backend.Client.
var _ backend.Client = (*Client)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addrs              []string
	Username           string
	Password           string
	APIKey             string
	MaxRetries         int
	RequestTimeout     time.Duration
	InsecureSkipVerify bool

	// Bulk indexer tuning.
	BulkWorkers    int
	BulkFlushBytes int
	BulkRefresh    string // "", "true", "false", "wait_for"
}

// Client implements backend.Client via the official Elasticsearch client.
type Client struct {
	es        *elasticsearch.Client
	transport *http.Transport
	cfg       Config
}

// New creates an Elasticsearch client. No request is made until first use.
func New(cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed dev clusters
		},
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addrs,
		Username:   cfg.Username,
		Password:   cfg.Password,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Transport:  transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{es: es, transport: transport, cfg: cfg}, nil
}

// Driver returns the driver name.
func (c *Client) Driver() string { return DriverName }

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return &backend.Error{Op: backend.OpPing, Err: err}
	}
	defer res.Body.Close()
	return checkResponse(backend.OpPing, res)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return backend.WaitForReady(ctx, c, timeout)
}

// CreateIndex creates an index with the given request body.
func (c *Client) CreateIndex(ctx context.Context, name string, body []byte) error {
	opts := []func(*esapi.IndicesCreateRequest){c.es.Indices.Create.WithContext(ctx)}
	if body != nil {
		opts = append(opts, c.es.Indices.Create.WithBody(bytes.NewReader(body)))
	}

	res, err := c.es.Indices.Create(name, opts...)
	if err != nil {
		return &backend.Error{Op: backend.OpCreateIndex, Err: err}
	}
	defer res.Body.Close()
	return checkResponse(backend.OpCreateIndex, res)
}

// IndexExists reports whether the index exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, &backend.Error{Op: backend.OpIndexExists, Err: err}
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, checkResponse(backend.OpIndexExists, res)
	}
}

// PutMapping merges field declarations into an existing index.
func (c *Client) PutMapping(ctx context.Context, name string, mapping []byte) error {
	res, err := c.es.Indices.PutMapping(
		[]string{name},
		bytes.NewReader(mapping),
		c.es.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return &backend.Error{Op: backend.OpPutMapping, Err: err}
	}
	defer res.Body.Close()
	return checkResponse(backend.OpPutMapping, res)
}

// GetMapping returns the raw mapping response.
func (c *Client) GetMapping(ctx context.Context, name string) ([]byte, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithIndex(name),
		c.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpGetMapping, Err: err}
	}
	defer res.Body.Close()
	return readBody(backend.OpGetMapping, res)
}

// Bulk indexes items through esutil.BulkIndexer. Item failures are counted, not returned.
func (c *Client) Bulk(ctx context.Context, index string, items []backend.BulkItem) (backend.BulkStats, error) {
	var stats backend.BulkStats
	if len(items) == 0 {
		return stats, nil
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     c.es,
		Index:      index,
		NumWorkers: c.cfg.BulkWorkers,
		FlushBytes: c.cfg.BulkFlushBytes,
		Refresh:    c.cfg.BulkRefresh,
	})
	if err != nil {
		return stats, &backend.Error{Op: backend.OpBulk, Err: fmt.Errorf("creating bulk indexer: %w", err)}
	}

	var mu sync.Mutex
	onSuccess := func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
		mu.Lock()
		stats.Indexed++
		mu.Unlock()
	}
	onFailure := func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Failed++
		if err != nil {
			stats.Errors = append(stats.Errors, err.Error())
		} else {
			stats.Errors = append(stats.Errors, fmt.Sprintf("[%d] %s: %s", res.Status, res.Error.Type, res.Error.Reason))
		}
	}

	added := 0
	for _, it := range items {
		err := indexer.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: it.ID,
			Body:       bytes.NewReader(it.Body),
			OnSuccess:  onSuccess,
			OnFailure:  onFailure,
		})
		if err != nil {
			// Indexer refuses new items (context cancelled); the rest count as failed.
			mu.Lock()
			stats.Failed += len(items) - added
			stats.Errors = append(stats.Errors, err.Error())
			mu.Unlock()
			break
		}
		added++
	}

	if err := indexer.Close(ctx); err != nil {
		mu.Lock()
		stats.Errors = append(stats.Errors, err.Error())
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	return stats, nil
}

// GetDocument returns the stored _source of a document.
func (c *Client) GetDocument(ctx context.Context, index, id string) ([]byte, error) {
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, &backend.Error{Op: backend.OpGetDocument, Err: err}
	}
	defer res.Body.Close()

	body, err := readBody(backend.OpGetDocument, res)
	if err != nil {
		return nil, err
	}
	src, err := backend.DecodeSource(body)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpGetDocument, Status: res.StatusCode, Err: err}
	}
	return src, nil
}

// Search runs the hostname query.
func (c *Client) Search(ctx context.Context, q *backend.Query) (*backend.SearchResult, error) {
	dsl, err := q.DSL()
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Err: err}
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(q.Index),
		c.es.Search.WithBody(bytes.NewReader(dsl)),
	)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Err: err}
	}
	defer res.Body.Close()

	body, err := readBody(backend.OpSearch, res)
	if err != nil {
		return nil, err
	}
	result, err := backend.DecodeHits(body)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Status: res.StatusCode, Err: fmt.Errorf("decode hits: %w", err)}
	}
	return result, nil
}

// checkResponse converts an error response into a backend error.
func checkResponse(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	return backend.FromResponse(op, res.StatusCode, body)
}

func readBody(op string, res *esapi.Response) ([]byte, error) {
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &backend.Error{Op: op, Status: res.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if res.IsError() {
		return nil, backend.FromResponse(op, res.StatusCode, body)
	}
	return body, nil
}
