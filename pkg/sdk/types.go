package hostdex

import "github.com/kailas-cloud/hostdex/internal/domain"

// Document is a stored document body.
type Document = domain.Document

// Mapping is an index mapping keyed by index name.
type Mapping = domain.Mapping

// IngestReport counts the outcome of AddData.
type IngestReport = domain.IngestReport
