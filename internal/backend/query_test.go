package backend

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestQueryDSL_WildcardOrMatch(t *testing.T) {
	q := &Query{Index: "hosts", Field: "hostname", Pattern: "exa*"}
	body, err := q.DSL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		Size  int `json:"size"`
		Query struct {
			Bool struct {
				Should             []map[string]map[string]map[string]any `json:"should"`
				MinimumShouldMatch int                                    `json:"minimum_should_match"`
			} `json:"bool"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Size != DefaultSearchSize {
		t.Errorf("size: got %d, want %d", got.Size, DefaultSearchSize)
	}
	if got.Query.Bool.MinimumShouldMatch != 1 {
		t.Errorf("minimum_should_match: got %d, want 1", got.Query.Bool.MinimumShouldMatch)
	}
	if len(got.Query.Bool.Should) != 2 {
		t.Fatalf("expected 2 should clauses, got %d", len(got.Query.Bool.Should))
	}
	if v := got.Query.Bool.Should[0]["wildcard"]["hostname"]["value"]; v != "exa*" {
		t.Errorf("wildcard value: got %v", v)
	}
	if v := got.Query.Bool.Should[1]["match"]["hostname"]["query"]; v != "exa*" {
		t.Errorf("match query: got %v", v)
	}
}

func TestQueryDSL_CustomSize(t *testing.T) {
	q := &Query{Index: "hosts", Field: "hostname", Pattern: "a", Size: 7}
	body, err := q.DSL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Size int `json:"size"`
	}
	_ = json.Unmarshal(body, &got)
	if got.Size != 7 {
		t.Errorf("size: got %d, want 7", got.Size)
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []Query{
		{Field: "hostname", Pattern: "a"},
		{Index: "i", Pattern: "a"},
		{Index: "i", Field: "hostname"},
	}
	for _, q := range tests {
		if err := q.Validate(); err == nil {
			t.Errorf("expected error for %+v", q)
		}
	}
}

func TestDecodeHits(t *testing.T) {
	body := []byte(`{"hits":{"total":{"value":2,"relation":"eq"},"hits":[
		{"_id":"1","_score":1.5,"_source":{"hostname":"a.com","ip":"1.1.1.1"}},
		{"_id":"2","_score":null,"_source":{"hostname":"b.com","ip":"2.2.2.2"}}]}}`)

	res, err := DecodeHits(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Hits) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Hits[0].ID != "1" || res.Hits[0].Score != 1.5 {
		t.Errorf("unexpected first hit: %+v", res.Hits[0])
	}
	if res.Hits[1].Score != 0 {
		t.Errorf("null score should decode to 0, got %f", res.Hits[1].Score)
	}
}

func TestDecodeHits_LegacyTotal(t *testing.T) {
	res, err := DecodeHits([]byte(`{"hits":{"total":5,"hits":[]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 5 {
		t.Errorf("total: got %d, want 5", res.Total)
	}
}

func TestDecodeSource(t *testing.T) {
	src, err := DecodeSource([]byte(`{"_id":"1","found":true,"_source":{"hostname":"a.com"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(src) != `{"hostname":"a.com"}` {
		t.Errorf("unexpected source: %s", src)
	}

	_, err = DecodeSource([]byte(`{"_id":"1","found":false}`))
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}
