package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

const tavilySearchURL = "https://api.tavily.com/search"

// videoDomains are skipped during full-content extraction since they carry
// no extractable article text.
var videoDomains = []string{"youtube.com", "youtu.be", "vimeo.com"}

// WebSearch performs a general-purpose web search through the Tavily API and
// upgrades snippets to full page content via the headless fetcher when the
// page yields substantially more text.
type WebSearch struct {
	cfg     config.ToolsConfig
	store   *docstore.Store
	fetcher *Fetcher
	client  *http.Client
	baseURL string
	logger  *log.Logger
}

func NewWebSearch(cfg config.ToolsConfig, store *docstore.Store, fetcher *Fetcher) *WebSearch {
	return &WebSearch{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: tavilySearchURL,
		logger:  log.New(log.Writer(), "[WEBSEARCH] ", log.LstdFlags),
	}
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Description() string {
	return "Performs a general-purpose web search. " +
		"Returns titles, URLs, and content for each result, and stores the results for later retrieval."
}

func (t *WebSearch) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "description": "Search keywords for retrieving information from the web"},
			"max_results": map[string]any{"type": "integer", "description": "Maximum number of results to return"},
			"topic":       map[string]any{"type": "string", "description": "Optional topic name for document storage"},
		},
		"required": []any{"query"},
	}
}

func (t *WebSearch) Call(ctx context.Context, args map[string]any) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return objectError("Web search failed: query is required"), nil
	}
	maxResults := argInt(args, "max_results", t.cfg.MaxResults)

	raw, err := t.search(ctx, query, maxResults)
	if err != nil {
		return objectError(fmt.Sprintf("Web search failed: %v", err)), nil
	}

	results := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		content := r.Content
		if t.fetcher != nil && r.URL != "" && !isVideoURL(r.URL) {
			if full, err := t.fetcher.Extract(ctx, r.URL); err != nil {
				t.logger.Printf("content extraction failed for %s: %v", r.URL, err)
			} else if len(full) > len(r.Content)*3/2 {
				content = full
			}
		}
		results = append(results, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": content,
			"score":   r.Score,
		})
	}

	topic := storageTopic(args, query)
	for _, r := range results {
		doc := docstore.Normalize(r, docstore.SourceWeb, query)
		if _, err := t.store.Save(topic, docstore.SourceWeb, doc); err != nil {
			t.logger.Printf("storing result %v: %v", r["url"], err)
		}
	}

	out, err := json.MarshalIndent(map[string]any{"query": query, "results": results}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(out), nil
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (t *WebSearch) search(ctx context.Context, query string, maxResults int) ([]tavilyResult, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":      t.cfg.TavilyAPIKey,
		"query":        query,
		"max_results":  maxResults,
		"search_depth": "basic",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily status %d", resp.StatusCode)
	}

	var out struct {
		Results []tavilyResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Results, nil
}

func isVideoURL(link string) bool {
	lower := strings.ToLower(link)
	for _, domain := range videoDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}
