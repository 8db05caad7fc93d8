package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

const sampleAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2401.12345v2</id>
    <title>Surface Codes for Dummies</title>
    <summary>  We review surface codes.  </summary>
    <published>2024-01-20T18:00:00Z</published>
    <updated>2024-02-01T09:30:00Z</updated>
    <author><name>Alice Example</name></author>
    <author><name>Bob Example</name></author>
    <link href="http://arxiv.org/abs/2401.12345v2" rel="alternate" type="text/html"/>
    <link href="http://arxiv.org/pdf/2401.12345v2" rel="related" title="pdf" type="application/pdf"/>
    <arxiv:doi>10.1000/example</arxiv:doi>
    <arxiv:primary_category term="quant-ph"/>
    <category term="quant-ph"/>
    <category term="cs.ET"/>
  </entry>
</feed>`

func TestArxivSearchParsesFeedAndStores(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(sampleAtomFeed))
	}))
	defer srv.Close()

	store := newTestStore(t)
	tool := NewArxivSearch(testToolsConfig(), store, nil)
	tool.baseURL = srv.URL

	out, err := tool.Call(context.Background(), map[string]any{
		"query": "surface codes",
		"topic": "quantum computing",
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if gotQuery != "all:surface codes" {
		t.Fatalf("search_query = %q", gotQuery)
	}

	var results []map[string]any
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	paper := results[0]
	if paper["title"] != "Surface Codes for Dummies" {
		t.Fatalf("title = %v", paper["title"])
	}
	if paper["paper_id"] != "2401.12345v2" {
		t.Fatalf("paper_id = %v", paper["paper_id"])
	}
	if paper["pdf_url"] != "http://arxiv.org/pdf/2401.12345v2" {
		t.Fatalf("pdf_url = %v", paper["pdf_url"])
	}
	if paper["published"] != "2024-01-20" {
		t.Fatalf("published = %v", paper["published"])
	}

	docs, _, err := store.ListForTopic("quantum computing")
	if err != nil {
		t.Fatalf("ListForTopic: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(docs))
	}
	if docs[0].Source != docstore.SourceArxiv {
		t.Fatalf("source = %q", docs[0].Source)
	}
	if docs[0].Content != "We review surface codes." {
		t.Fatalf("content = %q", docs[0].Content)
	}
}

func TestArxivSearchStoresUnderQueryWhenTopicMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleAtomFeed))
	}))
	defer srv.Close()

	store := newTestStore(t)
	tool := NewArxivSearch(testToolsConfig(), store, nil)
	tool.baseURL = srv.URL

	if _, err := tool.Call(context.Background(), map[string]any{"query": "Surface Codes"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	docs, _, err := store.ListForTopic("surface_codes")
	if err != nil {
		t.Fatalf("ListForTopic: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected document under normalized query topic, got %d", len(docs))
	}
}

func TestArxivSearchServerFailureBecomesErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewArxivSearch(testToolsConfig(), newTestStore(t), nil)
	tool.baseURL = srv.URL

	out, err := tool.Call(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("failures should be payloads, got error: %v", err)
	}
	if !strings.Contains(out, "arXiv search failed") {
		t.Fatalf("output = %q", out)
	}
}

func TestArxivSearchRequiresQuery(t *testing.T) {
	tool := NewArxivSearch(testToolsConfig(), newTestStore(t), nil)
	out, err := tool.Call(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(out, "query is required") {
		t.Fatalf("output = %q", out)
	}
}
