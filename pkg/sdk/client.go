package hostdex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/hostdex/internal/app"
	"github.com/kailas-cloud/hostdex/internal/backend"
	"github.com/kailas-cloud/hostdex/internal/domain"
	"github.com/kailas-cloud/hostdex/internal/repository/hostindex"
	healthuc "github.com/kailas-cloud/hostdex/internal/usecase/health"
)

const defaultReadinessTimeout = 10 * time.Second

// hostIndex is the internal adapter interface, swapped in tests.
type hostIndex interface {
	Search(ctx context.Context, index, pattern string) ([]domain.Document, error)
	GetMapping(ctx context.Context, index string) (domain.Mapping, error)
	CreateIndex(ctx context.Context, index string, cfg domain.IndexConfig) error
	BulkIndex(ctx context.Context, index string, records []map[string]any) (domain.IngestReport, error)
	GetDocument(ctx context.Context, index, id string) (domain.Document, error)
}

// Client is the hostdex SDK entry point. It is safe for concurrent use.
type Client struct {
	backend   backend.Client
	hosts     hostIndex
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and waits for the backend to answer.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{readinessTimeout: defaultReadinessTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.backend.Driver == "" {
		return nil, errors.New("hostdex: backend required (use WithElasticsearch, WithOpenSearch or WithMemory)")
	}

	be, err := app.OpenBackend(cfg.backend, cfg.ingest)
	if err != nil {
		return nil, fmt.Errorf("hostdex: open backend: %w", err)
	}
	if err := be.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		be.Close()
		return nil, fmt.Errorf("hostdex: backend not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		be.Close()
		return nil, err
	}

	return &Client{
		backend:   be,
		hosts:     hostindex.New(be).WithMaxResults(cfg.maxResults),
		healthSvc: healthuc.New(be, nil),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}

// Driver names the backend in use.
func (c *Client) Driver() string { return c.backend.Driver() }

// Search returns documents whose hostname matches pattern as a wildcard or as free text.
func (c *Client) Search(ctx context.Context, index, pattern string) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", index, start, err) }()

	if index == "" || pattern == "" {
		return nil, fmt.Errorf("%w: index and pattern are required", ErrValidation)
	}
	docs, err = c.hosts.Search(ctx, index, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return docs, nil
}

// Mapping returns the index mapping, or ErrNotFound when the backend has none.
func (c *Client) Mapping(ctx context.Context, index string) (m Mapping, err error) {
	start := time.Now()
	defer func() { c.obs.observe("mapping", index, start, err) }()

	if index == "" {
		return nil, fmt.Errorf("%w: index is required", ErrValidation)
	}
	m, err = c.hosts.GetMapping(ctx, index)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("mapping for %s: %w", index, ErrNotFound)
	}
	return m, nil
}

// IndexOption customizes CreateIndex.
type IndexOption func(*domain.IndexConfig)

// WithSettings passes index settings verbatim to the create request.
func WithSettings(settings json.RawMessage) IndexOption {
	return func(c *domain.IndexConfig) { c.Settings = settings }
}

// WithMappings passes index mappings verbatim to the create request.
func WithMappings(mappings json.RawMessage) IndexOption {
	return func(c *domain.IndexConfig) { c.Mappings = mappings }
}

// CreateIndex creates an index. Errors wrap ErrBackend and carry a short message.
func (c *Client) CreateIndex(ctx context.Context, index string, opts ...IndexOption) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("create_index", index, start, err) }()

	if index == "" {
		return fmt.Errorf("%w: index is required", ErrValidation)
	}
	var cfg domain.IndexConfig
	for _, o := range opts {
		o(&cfg)
	}
	return c.hosts.CreateIndex(ctx, index, cfg)
}

// AddData indexes host records. Records without a hostname or an IP are
// skipped; per-document failures are counted in the report.
func (c *Client) AddData(ctx context.Context, index string, records []map[string]any) (r IngestReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("add_data", index, start, err) }()

	if index == "" {
		return r, fmt.Errorf("%w: index is required", ErrValidation)
	}
	r, err = c.hosts.BulkIndex(ctx, index, records)
	if err != nil {
		return r, err
	}
	c.obs.ingest(index, r)
	return r, nil
}

// GetDocument returns a document by id, or ErrNotFound.
func (c *Client) GetDocument(ctx context.Context, index, id string) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_document", index, start, err) }()

	if index == "" || id == "" {
		return nil, fmt.Errorf("%w: index and id are required", ErrValidation)
	}
	doc, err = c.hosts.GetDocument(ctx, index, id)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("document %s/%s: %w", index, id, ErrNotFound)
	}
	return doc, nil
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
