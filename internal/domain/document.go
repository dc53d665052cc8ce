package domain

import "encoding/json"

// Document is a stored document body: field name to value.
type Document map[string]any

// Mapping is backend field-mapping metadata, returned verbatim to clients.
type Mapping map[string]any

// IndexConfig is the opaque settings/mappings pair passed through on index creation.
type IndexConfig struct {
	Settings json.RawMessage
	Mappings json.RawMessage
}

// IngestReport summarizes a bulk ingest. Partial success is expected.
type IngestReport struct {
	Received int
	Indexed  int
	Skipped  int
	Failed   int
}
