// Package opensearch implements backend.Client on opensearch-go v2.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	external "github.com/opensearch-project/opensearch-go/v2"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/kailas-cloud/hostdex/internal/backend"
)

// DriverName identifies this driver in config and metrics.
const DriverName = "opensearch"

// Compile-time check: Client implements backend.Client.
var _ backend.Client = (*Client)(nil)

// Config holds connection parameters for an OpenSearch cluster.
type Config struct {
	Addrs              []string
	Username           string
	Password           string
	MaxRetries         int
	RequestTimeout     time.Duration
	InsecureSkipVerify bool

	BulkWorkers    int
	BulkFlushBytes int
	BulkRefresh    string
}

// Client implements backend.Client via opensearch-go.
type Client struct {
	client    *external.Client
	transport *http.Transport
	cfg       Config
}

// New creates an OpenSearch client.
func New(cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // security plugin often runs with self-signed certs
		},
	}

	client, err := external.NewClient(external.Config{
		Transport:  transport,
		Addresses:  cfg.Addrs,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{client: client, transport: transport, cfg: cfg}, nil
}

// Driver returns the driver name.
func (c *Client) Driver() string { return DriverName }

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := api.PingRequest{}.Do(ctx, c.client)
	if err != nil {
		return &backend.Error{Op: backend.OpPing, Err: err}
	}
	defer resp.Body.Close()
	_, err = readBody(backend.OpPing, resp)
	return err
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
	req := api.IndicesCreateRequest{Index: name}
	if body != nil {
		req.Body = bytes.NewReader(body)
	}

	resp, err := req.Do(ctx, c.client)
	if err != nil {
		return &backend.Error{Op: backend.OpCreateIndex, Err: err}
	}
	defer resp.Body.Close()
	_, err = readBody(backend.OpCreateIndex, resp)
	return err
}

// IndexExists reports whether the index exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := api.IndicesExistsRequest{Index: []string{name}}.Do(ctx, c.client)
	if err != nil {
		return false, &backend.Error{Op: backend.OpIndexExists, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		_, err := readBody(backend.OpIndexExists, resp)
		return false, err
	}
}

// PutMapping merges field declarations into an existing index.
func (c *Client) PutMapping(ctx context.Context, name string, mapping []byte) error {
	req := api.IndicesPutMappingRequest{
		Index: []string{name},
		Body:  bytes.NewReader(mapping),
	}
	resp, err := req.Do(ctx, c.client)
	if err != nil {
		return &backend.Error{Op: backend.OpPutMapping, Err: err}
	}
	defer resp.Body.Close()
	_, err = readBody(backend.OpPutMapping, resp)
	return err
}

// GetMapping returns the raw mapping response.
func (c *Client) GetMapping(ctx context.Context, name string) ([]byte, error) {
	resp, err := api.IndicesGetMappingRequest{Index: []string{name}}.Do(ctx, c.client)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpGetMapping, Err: err}
	}
	defer resp.Body.Close()
	return readBody(backend.OpGetMapping, resp)
}

// Bulk indexes items through opensearchutil.BulkIndexer. Item failures are counted, not returned.
func (c *Client) Bulk(ctx context.Context, index string, items []backend.BulkItem) (backend.BulkStats, error) {
	var stats backend.BulkStats
	if len(items) == 0 {
		return stats, nil
	}

	indexer, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     c.client,
		Index:      index,
		NumWorkers: c.cfg.BulkWorkers,
		FlushBytes: c.cfg.BulkFlushBytes,
		Refresh:    c.cfg.BulkRefresh,
	})
	if err != nil {
		return stats, &backend.Error{Op: backend.OpBulk, Err: fmt.Errorf("creating bulk indexer: %w", err)}
	}

	var mu sync.Mutex
	onSuccess := func(context.Context, opensearchutil.BulkIndexerItem, opensearchutil.BulkIndexerResponseItem) {
		mu.Lock()
		stats.Indexed++
		mu.Unlock()
	}
	onFailure := func(
		_ context.Context, _ opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error,
	) {
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
		err := indexer.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: it.ID,
			Body:       bytes.NewReader(it.Body),
			OnSuccess:  onSuccess,
			OnFailure:  onFailure,
		})
		if err != nil {
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
	resp, err := api.GetRequest{Index: index, DocumentID: id}.Do(ctx, c.client)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpGetDocument, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(backend.OpGetDocument, resp)
	if err != nil {
		return nil, err
	}
	src, err := backend.DecodeSource(body)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpGetDocument, Status: resp.StatusCode, Err: err}
	}
	return src, nil
}

// Search runs the hostname query.
func (c *Client) Search(ctx context.Context, q *backend.Query) (*backend.SearchResult, error) {
	dsl, err := q.DSL()
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Err: err}
	}

	req := api.SearchRequest{
		Index: []string{q.Index},
		Body:  bytes.NewReader(dsl),
	}
	resp, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(backend.OpSearch, resp)
	if err != nil {
		return nil, err
	}
	result, err := backend.DecodeHits(body)
	if err != nil {
		return nil, &backend.Error{Op: backend.OpSearch, Status: resp.StatusCode, Err: fmt.Errorf("decode hits: %w", err)}
	}
	return result, nil
}

func readBody(op string, resp *api.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &backend.Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.IsError() {
		return nil, backend.FromResponse(op, resp.StatusCode, body)
	}
	return body, nil
}
