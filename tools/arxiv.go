package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

const arxivAPIURL = "http://export.arxiv.org/api/query"

// ArxivSearch queries the arXiv Atom API and stores every returned paper in
// the document store. When a fetcher is available it also pulls the article
// page for full text.
type ArxivSearch struct {
	cfg     config.ToolsConfig
	store   *docstore.Store
	fetcher *Fetcher
	client  *http.Client
	baseURL string
	logger  *log.Logger
}

func NewArxivSearch(cfg config.ToolsConfig, store *docstore.Store, fetcher *Fetcher) *ArxivSearch {
	return &ArxivSearch{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: arxivAPIURL,
		logger:  log.New(log.Writer(), "[ARXIV] ", log.LstdFlags),
	}
}

func (t *ArxivSearch) Name() string { return "arxiv_search" }

func (t *ArxivSearch) Description() string {
	return "Searches for research papers on arXiv by query string. " +
		"Returns comprehensive paper data and automatically stores papers for later retrieval."
}

func (t *ArxivSearch) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "description": "Search keywords for research papers"},
			"max_results": map[string]any{"type": "integer", "description": "Maximum number of results to return"},
			"topic":       map[string]any{"type": "string", "description": "Optional topic name for document storage"},
		},
		"required": []any{"query"},
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Updated   string   `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Rel   string `xml:"rel,attr"`
		Title string `xml:"title,attr"`
		Type  string `xml:"type,attr"`
	} `xml:"link"`
	Comment    string `xml:"comment"`
	JournalRef string `xml:"journal_ref"`
	DOI        string `xml:"doi"`
	PrimaryCat struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

func (t *ArxivSearch) Call(ctx context.Context, args map[string]any) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return errorPayload("arXiv search failed: query is required"), nil
	}
	maxResults := argInt(args, "max_results", t.cfg.MaxResults)
	topic := storageTopic(args, query)

	feed, err := t.search(ctx, query, maxResults)
	if err != nil {
		return errorPayload(fmt.Sprintf("arXiv search failed: %v", err)), nil
	}

	results := make([]map[string]any, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		info := t.paperInfo(ctx, entry)
		results = append(results, info)

		doc := docstore.Normalize(info, docstore.SourceArxiv, query)
		if _, err := t.store.Save(topic, docstore.SourceArxiv, doc); err != nil {
			t.logger.Printf("storing paper %s: %v", info["paper_id"], err)
		}
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(out), nil
}

func (t *ArxivSearch) search(ctx context.Context, query string, maxResults int) (*atomFeed, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, "GET", t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}
	return &feed, nil
}

func (t *ArxivSearch) paperInfo(ctx context.Context, entry atomEntry) map[string]any {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}
	categories := make([]string, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		categories = append(categories, c.Term)
	}

	pdfURL := ""
	links := make([]map[string]any, 0, len(entry.Links))
	for _, l := range entry.Links {
		links = append(links, map[string]any{"href": l.Href, "rel": l.Rel, "title": l.Title})
		if l.Title == "pdf" || l.Type == "application/pdf" {
			pdfURL = l.Href
		}
	}

	entryID := strings.TrimSpace(entry.ID)
	parts := strings.Split(entryID, "/")
	paperID := parts[len(parts)-1]

	info := map[string]any{
		"title":            strings.TrimSpace(entry.Title),
		"authors":          authors,
		"summary":          strings.TrimSpace(entry.Summary),
		"pdf_url":          pdfURL,
		"entry_id":         entryID,
		"published":        datePart(entry.Published),
		"updated":          datePart(entry.Updated),
		"comment":          strings.TrimSpace(entry.Comment),
		"journal_ref":      strings.TrimSpace(entry.JournalRef),
		"doi":              strings.TrimSpace(entry.DOI),
		"primary_category": entry.PrimaryCat.Term,
		"categories":       categories,
		"links":            links,
		"url":              entryID,
		"link_pdf":         pdfURL,
		"paper_id":         paperID,
		"content":          strings.TrimSpace(entry.Summary),
	}

	if t.fetcher != nil && entryID != "" {
		if text, err := t.fetcher.Extract(ctx, entryID); err != nil {
			t.logger.Printf("full text extraction failed for %s: %v", paperID, err)
		} else if len(text) > len(info["summary"].(string)) {
			info["full_text"] = text
			info["full_text_length"] = len(text)
			info["content"] = text
		}
	}
	return info
}

func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

func errorPayload(msg string) string {
	out, _ := json.Marshal([]map[string]string{{"error": msg}})
	return string(out)
}
