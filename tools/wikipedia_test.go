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

func wikipediaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			json.NewEncoder(w).Encode(map[string]any{
				"query": map[string]any{
					"search": []map[string]any{{"title": "Quantum computing"}},
				},
			})
		case q.Get("exintro") == "1":
			json.NewEncoder(w).Encode(map[string]any{
				"query": map[string]any{
					"pages": map[string]any{
						"123": map[string]any{
							"extract": "A quantum computer exploits quantum mechanics.",
							"fullurl": "https://en.wikipedia.org/wiki/Quantum_computing",
						},
					},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"query": map[string]any{
					"pages": map[string]any{
						"123": map[string]any{
							"extract": "A quantum computer exploits quantum mechanics. Full body follows with much more detail.",
							"fullurl": "https://en.wikipedia.org/wiki/Quantum_computing",
						},
					},
				},
			})
		}
	}))
}

func TestWikipediaSearchReturnsPageAndStores(t *testing.T) {
	srv := wikipediaTestServer(t)
	defer srv.Close()

	store := newTestStore(t)
	tool := NewWikipediaSearch(testToolsConfig(), store)
	tool.baseURL = srv.URL

	out, err := tool.Call(context.Background(), map[string]any{
		"query": "quantum computer",
		"topic": "quantum computing",
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if result["title"] != "Quantum computing" {
		t.Fatalf("title = %v", result["title"])
	}
	if result["url"] != "https://en.wikipedia.org/wiki/Quantum_computing" {
		t.Fatalf("url = %v", result["url"])
	}
	if !strings.Contains(result["content"].(string), "Full body follows") {
		t.Fatalf("content = %v", result["content"])
	}
	if strings.Contains(result["summary"].(string), "Full body follows") {
		t.Fatalf("summary should be the lead section only: %v", result["summary"])
	}

	docs, _, err := store.ListForTopic("quantum computing")
	if err != nil {
		t.Fatalf("ListForTopic: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != docstore.SourceWikipedia {
		t.Fatalf("stored docs = %+v", docs)
	}
	if docs[0].Title != "Quantum computing" {
		t.Fatalf("stored title = %q", docs[0].Title)
	}
}

func TestWikipediaSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"query": map[string]any{"search": []map[string]any{}},
		})
	}))
	defer srv.Close()

	tool := NewWikipediaSearch(testToolsConfig(), newTestStore(t))
	tool.baseURL = srv.URL

	out, err := tool.Call(context.Background(), map[string]any{"query": "xyzzy quux"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(out, "No Wikipedia page found for 'xyzzy quux'") {
		t.Fatalf("output = %q", out)
	}
}

func TestWikipediaSearchServerFailureBecomesErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	tool := NewWikipediaSearch(testToolsConfig(), newTestStore(t))
	tool.baseURL = srv.URL

	out, err := tool.Call(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(out, "Wikipedia search failed") {
		t.Fatalf("output = %q", out)
	}
}
