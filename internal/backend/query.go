package backend

import (
	"encoding/json"
	"errors"
)

// DefaultSearchSize is used when Query.Size is not positive.
const DefaultSearchSize = 100

// Query matches documents whose Field satisfies a wildcard OR a match query against Pattern.
type Query struct {
	Index   string
	Field   string
	Pattern string
	Size    int
}

// Validate checks that the query is well-formed.
func (q *Query) Validate() error {
	if q.Index == "" {
		return errors.New("index is required")
	}
	if q.Field == "" {
		return errors.New("field is required")
	}
	if q.Pattern == "" {
		return errors.New("pattern is required")
	}
	return nil
}

// DSL renders the query as a Query DSL search body.
func (q *Query) DSL() ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	size := q.Size
	if size <= 0 {
		size = DefaultSearchSize
	}

	body := map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"wildcard": map[string]any{q.Field: map[string]any{"value": q.Pattern}}},
					map[string]any{"match": map[string]any{q.Field: map[string]any{"query": q.Pattern}}},
				},
				"minimum_should_match": 1,
			},
		},
	}
	return json.Marshal(body)
}

// DecodeHits parses the hits section of a REST search response.
func DecodeHits(body []byte) (*SearchResult, error) {
	var resp struct {
		Hits struct {
			Total json.RawMessage `json:"total"`
			Hits  []struct {
				ID     string          `json:"_id"`
				Score  *float64        `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	res := &SearchResult{
		Total: decodeTotal(resp.Hits.Total),
		Hits:  make([]Hit, 0, len(resp.Hits.Hits)),
	}
	for _, h := range resp.Hits.Hits {
		hit := Hit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		res.Hits = append(res.Hits, hit)
	}
	if res.Total < len(res.Hits) {
		res.Total = len(res.Hits)
	}
	return res, nil
}

// decodeTotal accepts both {"value":N} and the legacy bare-number form.
func decodeTotal(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	var n int
	_ = json.Unmarshal(raw, &n)
	return n
}

// DecodeSource extracts _source from a get-document response.
func DecodeSource(body []byte) ([]byte, error) {
	var resp struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, ErrDocumentNotFound
	}
	return resp.Source, nil
}
