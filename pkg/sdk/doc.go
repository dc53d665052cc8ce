// Package hostdex is an in-process client for host inventory indexes on
// Elasticsearch, OpenSearch or an embedded bleve index. It exposes the same
// operations as the HTTP gateway without going through HTTP or token checks.
//
//	client, _ := hostdex.New(ctx, hostdex.WithElasticsearch("http://localhost:9200"))
//	defer client.Close()
//
//	_ = client.CreateIndex(ctx, "hosts")
//	report, _ := client.AddData(ctx, "hosts", []map[string]any{
//	    {"hostname": "web-01.example.com", "ip": "10.0.0.1"},
//	})
//	hits, _ := client.Search(ctx, "hosts", "web-*")
//
// For tests and tooling, WithMemory keeps everything in process.
package hostdex
