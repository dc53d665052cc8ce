package hostdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/hostdex/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	backend          config.BackendConfig
	ingest           config.IngestConfig
	maxResults       int
	readinessTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithElasticsearch connects to an Elasticsearch 8 cluster.
func WithElasticsearch(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverElasticsearch
		c.backend.Addrs = addrs
	})
}

// WithOpenSearch connects to an OpenSearch 2 cluster.
func WithOpenSearch(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverOpenSearch
		c.backend.Addrs = addrs
	})
}

// WithMemory uses an embedded in-memory index. Data is lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverMemory
		c.backend.Addrs = nil
	})
}

// WithBasicAuth sets cluster credentials.
func WithBasicAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Username = username
		c.backend.Password = password
	})
}

// WithAPIKey sets an Elasticsearch API key.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.APIKey = key
	})
}

// WithInsecureTLS disables certificate verification (self-signed dev clusters).
func WithInsecureTLS() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.InsecureSkipVerify = true
	})
}

// WithBulk tunes the bulk indexer used by AddData.
func WithBulk(workers, flushBytes int) Option {
	return optionFunc(func(c *clientConfig) {
		c.ingest.Workers = workers
		c.ingest.FlushBytes = flushBytes
	})
}

// WithRefresh sets the refresh policy of bulk requests: "true", "false" or "wait_for".
func WithRefresh(policy string) Option {
	return optionFunc(func(c *clientConfig) {
		c.ingest.Refresh = policy
	})
}

// WithMaxResults caps the number of documents returned by Search.
// Default: 100.
func WithMaxResults(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxResults = n
	})
}

// WithReadinessTimeout bounds the initial connectivity check in New.
// Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
