// Package hostindex is the search client adapter: it exposes the gateway's five
// index operations on top of a backend driver and folds backend faults into the
// domain error taxonomy.
package hostindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hostdex/internal/backend"
	"github.com/kailas-cloud/hostdex/internal/domain"
	"github.com/kailas-cloud/hostdex/internal/domain/host"
	logpkg "github.com/kailas-cloud/hostdex/internal/logger"
	"github.com/kailas-cloud/hostdex/internal/metrics"
)

// store is the consumer interface for backend operations (ISP).
type store interface {
	backend.IndexManager
	backend.DocumentStore
	backend.Searcher
	Driver() string
}

// Repository implements the adapter. It holds no per-request state: the index
// name is passed explicitly to every call, so one instance serves all requests.
type Repository struct {
	store      store
	maxResults int
}

// New creates a Repository over the given backend.
func New(s store) *Repository {
	return &Repository{store: s, maxResults: backend.DefaultSearchSize}
}

// WithMaxResults caps the number of search hits returned.
func (r *Repository) WithMaxResults(n int) *Repository {
	if n > 0 {
		r.maxResults = n
	}
	return r
}

// GetMapping returns the index field mapping, or nil when the backend cannot
// provide one (missing index included).
func (r *Repository) GetMapping(ctx context.Context, index string) (domain.Mapping, error) {
	start := time.Now()
	raw, err := r.store.GetMapping(ctx, index)
	r.observe(backend.OpGetMapping, start, err)
	if err != nil {
		logpkg.FromContext(ctx).Warn("get mapping failed", zap.String("index", index), zap.Error(err))
		return nil, nil
	}

	var m domain.Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		logpkg.FromContext(ctx).Warn("decode mapping failed", zap.String("index", index), zap.Error(err))
		return nil, nil
	}
	return m, nil
}

// CreateIndex creates an index, applying settings and mappings in the create request.
func (r *Repository) CreateIndex(ctx context.Context, index string, cfg domain.IndexConfig) error {
	body, err := backend.CreateIndexBody(cfg.Settings, cfg.Mappings)
	if err != nil {
		return domain.NewBackendError(backend.OpCreateIndex, err, "invalid settings or mappings for index %s", index)
	}

	start := time.Now()
	err = r.store.CreateIndex(ctx, index, body)
	r.observe(backend.OpCreateIndex, start, err)
	if err == nil {
		return nil
	}

	logpkg.FromContext(ctx).Warn("create index failed", zap.String("index", index), zap.Error(err))
	if errors.Is(err, backend.ErrIndexExists) {
		return domain.NewBackendError(backend.OpCreateIndex, err, "index %s already exists", index)
	}
	return domain.NewBackendError(backend.OpCreateIndex, err,
		"index %s could not be created: %s", index, reason(err))
}

// BulkIndex stores one host document per usable record. Records without a
// hostname or an IP are skipped; per-document failures are counted and never
// abort the batch. Only a failed schema initialization returns an error.
func (r *Repository) BulkIndex(ctx context.Context, index string, records []map[string]any) (domain.IngestReport, error) {
	log := logpkg.FromContext(ctx)
	report := domain.IngestReport{Received: len(records)}

	if err := r.ensureSchema(ctx, index); err != nil {
		log.Error("document schema init failed", zap.String("index", index), zap.Error(err))
		return report, domain.NewBackendError(backend.OpPutMapping, err,
			"could not initialize document schema for index %s: %s", index, reason(err))
	}

	items := make([]backend.BulkItem, 0, len(records))
	for i, rec := range records {
		h, err := host.FromRecord(rec)
		if err != nil {
			if host.IsSkippable(err) {
				report.Skipped++
				continue
			}
			report.Failed++
			log.Debug("record rejected", zap.Int("position", i), zap.Error(err))
			continue
		}

		body, err := json.Marshal(h.Source())
		if err != nil {
			report.Failed++
			continue
		}
		items = append(items, backend.BulkItem{Body: body})
	}

	if len(items) > 0 {
		start := time.Now()
		stats, err := r.store.Bulk(ctx, index, items)
		r.observe(backend.OpBulk, start, err)
		if err != nil {
			// Whole request failed: every pending document counts as failed, the batch still succeeds.
			log.Warn("bulk request failed", zap.String("index", index), zap.Error(err))
			report.Failed += len(items) - stats.Indexed
			report.Indexed += stats.Indexed
		} else {
			report.Indexed += stats.Indexed
			report.Failed += stats.Failed
		}
		for _, e := range stats.Errors {
			log.Debug("bulk item failed", zap.String("index", index), zap.String("error", e))
		}
	}

	metrics.ObserveIngest(r.store.Driver(), report.Indexed, report.Skipped, report.Failed)
	log.Info("bulk ingest finished",
		zap.String("index", index),
		zap.Int("received", report.Received),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// GetDocument returns the document body, or nil when it is missing or the backend fails.
func (r *Repository) GetDocument(ctx context.Context, index, id string) (domain.Document, error) {
	start := time.Now()
	src, err := r.store.GetDocument(ctx, index, id)
	if errors.Is(err, backend.ErrDocumentNotFound) || errors.Is(err, backend.ErrIndexNotFound) {
		r.observe(backend.OpGetDocument, start, nil)
		logpkg.FromContext(ctx).Debug("document not found", zap.String("index", index), zap.String("id", id))
		return nil, nil
	}
	r.observe(backend.OpGetDocument, start, err)
	if err != nil {
		logpkg.FromContext(ctx).Warn("get document failed",
			zap.String("index", index), zap.String("id", id), zap.Error(err))
		return nil, nil
	}

	var doc domain.Document
	if err := json.Unmarshal(src, &doc); err != nil {
		logpkg.FromContext(ctx).Warn("decode document failed", zap.String("id", id), zap.Error(err))
		return nil, nil
	}
	return doc, nil
}

// Search returns documents whose hostname matches pattern as a wildcard or as
// free text. Unlike the other operations, backend faults are returned to the caller.
func (r *Repository) Search(ctx context.Context, index, pattern string) ([]domain.Document, error) {
	q := &backend.Query{Index: index, Field: host.FieldHostname, Pattern: pattern, Size: r.maxResults}

	start := time.Now()
	res, err := r.store.Search(ctx, q)
	r.observe(backend.OpSearch, start, err)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	docs := make([]domain.Document, 0, len(res.Hits))
	for _, h := range res.Hits {
		var doc domain.Document
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ensureSchema applies the host document schema to index, creating the index if needed.
func (r *Repository) ensureSchema(ctx context.Context, index string) error {
	start := time.Now()
	exists, err := r.store.IndexExists(ctx, index)
	r.observe(backend.OpIndexExists, start, err)
	if err != nil {
		return err
	}

	if !exists {
		body, err := backend.CreateIndexBody(nil, backend.HostMapping)
		if err != nil {
			return err
		}
		start = time.Now()
		err = r.store.CreateIndex(ctx, index, body)
		r.observe(backend.OpCreateIndex, start, err)
		if err == nil {
			return nil
		}
		if !errors.Is(err, backend.ErrIndexExists) {
			return err
		}
		// Lost a creation race with a concurrent request; fall through to the mapping update.
	}

	start = time.Now()
	err = r.store.PutMapping(ctx, index, backend.HostMapping)
	r.observe(backend.OpPutMapping, start, err)
	return err
}

func (r *Repository) observe(op string, start time.Time, err error) {
	metrics.ObserveBackend(r.store.Driver(), op, start, err)
}

// reason extracts a short client-safe explanation from a backend error.
func reason(err error) string {
	var re *backend.ResponseError
	if errors.As(err, &re) && re.Reason != "" {
		return re.Reason
	}
	if errors.Is(err, backend.ErrIndexNotFound) {
		return "index not found"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "search backend timed out"
	}
	return "search backend unavailable"
}
