package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

const wikipediaAPIURL = "https://en.wikipedia.org/w/api.php"

// WikipediaSearch resolves a query to the best-matching article and stores
// the page with both its summary and full plain-text content.
type WikipediaSearch struct {
	cfg     config.ToolsConfig
	store   *docstore.Store
	client  *http.Client
	baseURL string
	logger  *log.Logger
}

func NewWikipediaSearch(cfg config.ToolsConfig, store *docstore.Store) *WikipediaSearch {
	return &WikipediaSearch{
		cfg:     cfg,
		store:   store,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: wikipediaAPIURL,
		logger:  log.New(log.Writer(), "[WIKIPEDIA] ", log.LstdFlags),
	}
}

func (t *WikipediaSearch) Name() string { return "wikipedia_search" }

func (t *WikipediaSearch) Description() string {
	return "Searches for a Wikipedia article by query string. " +
		"Returns the page title, summary, full content, and URL, and stores the article for later retrieval."
}

func (t *WikipediaSearch) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Search keywords for the Wikipedia article"},
			"topic": map[string]any{"type": "string", "description": "Optional topic name for document storage"},
		},
		"required": []any{"query"},
	}
}

func (t *WikipediaSearch) Call(ctx context.Context, args map[string]any) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return objectError("Wikipedia search failed: query is required"), nil
	}

	title, err := t.findTitle(ctx, query)
	if err != nil {
		return objectError(fmt.Sprintf("Wikipedia search failed: %v", err)), nil
	}
	if title == "" {
		return objectError(fmt.Sprintf("No Wikipedia page found for '%s'", query)), nil
	}

	page, err := t.fetchPage(ctx, title)
	if err != nil {
		return objectError(fmt.Sprintf("Wikipedia search failed: %v", err)), nil
	}

	result := map[string]any{
		"title":          page.Title,
		"url":            page.URL,
		"summary":        page.Summary,
		"content":        page.Content,
		"content_length": len(page.Content),
	}

	topic := storageTopic(args, query)
	doc := docstore.Normalize(result, docstore.SourceWikipedia, query)
	if _, err := t.store.Save(topic, docstore.SourceWikipedia, doc); err != nil {
		t.logger.Printf("storing article %q: %v", page.Title, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(out), nil
}

type wikiPage struct {
	Title   string
	URL     string
	Summary string
	Content string
}

func (t *WikipediaSearch) findTitle(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "1")
	params.Set("format", "json")

	var out struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := t.get(ctx, params, &out); err != nil {
		return "", err
	}
	if len(out.Query.Search) == 0 {
		return "", nil
	}
	return out.Query.Search[0].Title, nil
}

func (t *WikipediaSearch) fetchPage(ctx context.Context, title string) (*wikiPage, error) {
	content, fullURL, err := t.extract(ctx, title, false)
	if err != nil {
		return nil, err
	}
	summary, _, err := t.extract(ctx, title, true)
	if err != nil {
		return nil, err
	}
	return &wikiPage{Title: title, URL: fullURL, Summary: summary, Content: content}, nil
}

// extract pulls plain text for a page; introOnly limits it to the lead
// section, which serves as the article summary.
func (t *WikipediaSearch) extract(ctx context.Context, title string, introOnly bool) (string, string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|info")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("redirects", "1")
	params.Set("titles", title)
	params.Set("format", "json")
	if introOnly {
		params.Set("exintro", "1")
	}

	var out struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
				FullURL string `json:"fullurl"`
				Missing *any   `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := t.get(ctx, params, &out); err != nil {
		return "", "", err
	}
	for _, page := range out.Query.Pages {
		if page.Missing != nil {
			return "", "", fmt.Errorf("page %q does not exist", title)
		}
		return page.Extract, page.FullURL, nil
	}
	return "", "", fmt.Errorf("page %q does not exist", title)
}

func (t *WikipediaSearch) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func objectError(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
