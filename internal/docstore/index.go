package docstore

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve"
)

// Index is a full-text index over stored document content. It accelerates
// cross-topic search; the JSON files on disk remain authoritative.
type Index struct {
	idx bleve.Index
}

// indexEntry is the shape handed to bleve per document.
type indexEntry struct {
	Topic   string `json:"topic"`
	Source  string `json:"source"`
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Query   string `json:"query"`
	Content string `json:"content"`
}

// Hit is one full-text search match.
type Hit struct {
	Topic  string  `json:"topic"`
	Source string  `json:"source"`
	DocID  string  `json:"doc_id"`
	Score  float64 `json:"score"`
}

// OpenIndex opens or creates a bleve index at path. An empty path yields an
// in-memory index.
func OpenIndex(path string) (*Index, error) {
	mapping := bleve.NewIndexMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("opening in-memory index: %w", err)
		}
		return &Index{idx: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("opening index %s: %w", path, err)
		}
		idx, err = bleve.New(path, mapping)
		if err != nil {
			return nil, fmt.Errorf("creating index %s: %w", path, err)
		}
	}
	return &Index{idx: idx}, nil
}

// IndexDocument adds or replaces one document in the index.
func (ix *Index) IndexDocument(topic, source, id string, doc Document) error {
	entry := indexEntry{
		Topic:   topic,
		Source:  source,
		DocID:   id,
		Title:   doc.Title,
		URL:     doc.URL,
		Query:   doc.Query,
		Content: doc.Content,
	}
	return ix.idx.Index(topic+"/"+source+"_"+id, entry)
}

// Search runs a full-text match query and returns up to k hits.
func (ix *Index) Search(query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = k
	req.Fields = []string{"topic", "source", "doc_id"}
	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			Topic:  fieldStr(h.Fields, "topic"),
			Source: fieldStr(h.Fields, "source"),
			DocID:  fieldStr(h.Fields, "doc_id"),
			Score:  h.Score,
		})
	}
	return hits, nil
}

// Close releases the underlying index.
func (ix *Index) Close() error { return ix.idx.Close() }

func fieldStr(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}
