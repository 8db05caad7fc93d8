package docstore

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Document sources, in retrieval priority order.
const (
	SourceArxiv     = "arxiv"
	SourceWikipedia = "wikipedia"
	SourceWeb       = "web-search"
)

const (
	rawDirName     = "raw"
	reportFileName = "final_report.md"
)

// Document is one normalized retrieved source item. Canonical fields live on
// the struct; source-specific fields are preserved verbatim in Extra and
// round-trip through JSON at the top level of the stored file.
type Document struct {
	Source    string
	Query     string
	FetchedAt time.Time
	Title     string
	URL       string
	Content   string
	Extra     map[string]any
}

// canonical field names at the top level of a stored document file.
var canonicalKeys = map[string]struct{}{
	"source": {}, "query": {}, "fetched_at": {}, "title": {}, "url": {}, "content": {},
}

// MarshalJSON flattens canonical and source-specific fields into one object.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+6)
	for k, v := range d.Extra {
		if _, reserved := canonicalKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["source"] = d.Source
	out["query"] = d.Query
	out["fetched_at"] = d.FetchedAt.Format(time.RFC3339)
	out["title"] = d.Title
	out["url"] = d.URL
	out["content"] = d.Content
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Source = str(raw["source"])
	d.Query = str(raw["query"])
	d.Title = str(raw["title"])
	d.URL = str(raw["url"])
	d.Content = str(raw["content"])
	if ts := str(raw["fetched_at"]); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			d.FetchedAt = t
		}
	}
	d.Extra = make(map[string]any)
	for k, v := range raw {
		if _, reserved := canonicalKeys[k]; reserved {
			continue
		}
		d.Extra[k] = v
	}
	return nil
}

func str(v any) string { s, _ := v.(string); return s }

// NormalizeTopic lowercases a topic and replaces spaces with underscores to
// form the storage key. Applying it twice yields the same key.
func NormalizeTopic(topic string) string {
	return strings.ReplaceAll(strings.ToLower(topic), " ", "_")
}

// Normalize wraps source-specific data with the unified document schema.
// Content prefers full extracted text over page content over summary.
func Normalize(data map[string]any, source, query string) Document {
	content := str(data["full_text"])
	if content == "" {
		content = str(data["content"])
	}
	if content == "" {
		content = str(data["summary"])
	}
	url := str(data["url"])
	if url == "" {
		url = str(data["pdf_url"])
	}
	if url == "" {
		url = str(data["entry_id"])
	}
	extra := make(map[string]any, len(data))
	for k, v := range data {
		extra[k] = v
	}
	return Document{
		Source:    source,
		Query:     query,
		FetchedAt: time.Now(),
		Title:     str(data["title"]),
		URL:       url,
		Content:   content,
		Extra:     extra,
	}
}

// GenerateID derives a deterministic document id from source-specific data.
func GenerateID(source string, doc Document) string {
	switch source {
	case SourceArxiv:
		if id := str(doc.Extra["paper_id"]); id != "" {
			return id
		}
		entry := str(doc.Extra["entry_id"])
		if entry == "" {
			entry = doc.URL
		}
		parts := strings.Split(entry, "/")
		return parts[len(parts)-1]
	case SourceWikipedia:
		return NormalizeTopic(doc.Title)
	case SourceWeb:
		sum := md5.Sum([]byte(doc.URL))
		return hex.EncodeToString(sum[:])[:12]
	default:
		b, _ := json.Marshal(doc)
		sum := md5.Sum(b)
		return hex.EncodeToString(sum[:])[:12]
	}
}

// TopicInfo describes one stored topic folder.
type TopicInfo struct {
	Name       string `json:"name"`
	PaperCount int    `json:"paper_count"`
}

// Store persists documents and final reports under a base directory, one JSON
// file per document at {base}/{topic}/raw/{source}_{id}.json. The files
// themselves are the authoritative record; the optional index only
// accelerates cross-topic search.
type Store struct {
	base   string
	logger *log.Logger
	index  *Index
}

// NewStore creates a document store rooted at base.
func NewStore(base string, index *Index) *Store {
	return &Store{
		base:   base,
		logger: log.New(log.Writer(), "[DOCSTORE] ", log.LstdFlags),
		index:  index,
	}
}

// Base returns the store's root directory.
func (s *Store) Base() string { return s.base }

func (s *Store) topicDir(topic string) string {
	return filepath.Join(s.base, NormalizeTopic(topic))
}

func (s *Store) rawDir(topic string) string {
	return filepath.Join(s.topicDir(topic), rawDirName)
}

func (s *Store) documentFile(topic, source, id string) string {
	return filepath.Join(s.rawDir(topic), fmt.Sprintf("%s_%s.json", source, id))
}

// Save stores a document under the topic, overwriting any previous document
// with the same (source, id). Returns the generated document id.
func (s *Store) Save(topic, source string, doc Document) (string, error) {
	id := GenerateID(source, doc)
	path := s.documentFile(topic, source, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating raw dir: %w", err)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}
	if s.index != nil {
		if err := s.index.IndexDocument(NormalizeTopic(topic), source, id, doc); err != nil {
			s.logger.Printf("warn: indexing %s/%s_%s failed: %v", topic, source, id, err)
		}
	}
	return id, nil
}

// ListForTopic loads every stored document for the topic. Documents without
// content are skipped but counted in the second return value.
func (s *Store) ListForTopic(topic string) ([]Document, int, error) {
	entries, err := os.ReadDir(s.rawDir(topic))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading topic dir: %w", err)
	}
	var docs []Document
	skipped := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		doc, err := s.loadDocument(filepath.Join(s.rawDir(topic), e.Name()))
		if err != nil {
			skipped++
			continue
		}
		if doc.Content == "" && str(doc.Extra["summary"]) == "" {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

func (s *Store) loadDocument(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// FindByID searches all topic directories for a document whose id field or
// filename contains id. Returns the document and true when found.
func (s *Store) FindByID(id string) (Document, bool) {
	topics, err := os.ReadDir(s.base)
	if err != nil {
		return Document{}, false
	}
	for _, t := range topics {
		if !t.IsDir() {
			continue
		}
		raw := filepath.Join(s.base, t.Name(), rawDirName)
		entries, err := os.ReadDir(raw)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			doc, err := s.loadDocument(filepath.Join(raw, e.Name()))
			if err != nil {
				continue
			}
			docID := str(doc.Extra["paper_id"])
			if docID == "" {
				docID = str(doc.Extra["id"])
			}
			stem := strings.TrimSuffix(e.Name(), ".json")
			if (docID != "" && strings.Contains(docID, id)) || strings.Contains(stem, id) {
				return doc, true
			}
		}
	}
	return Document{}, false
}

// Topics lists topic folders that contain at least one stored document,
// derived purely from what has been persisted.
func (s *Store) Topics() ([]TopicInfo, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading papers dir: %w", err)
	}
	var topics []TopicInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		raw, err := os.ReadDir(filepath.Join(s.base, e.Name(), rawDirName))
		if err != nil {
			continue
		}
		count := 0
		for _, f := range raw {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
				count++
			}
		}
		if count > 0 {
			topics = append(topics, TopicInfo{Name: e.Name(), PaperCount: count})
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics, nil
}

// SaveReport writes the final report for a topic. The write is atomic: the
// report file either holds the previous content or the full new content.
func (s *Store) SaveReport(topic, content string) error {
	dir := s.topicDir(topic)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating topic dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, reportFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp report: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing report: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, reportFileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming report: %w", err)
	}
	return nil
}

// Report returns the persisted final report for a topic.
func (s *Store) Report(topic string) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.topicDir(topic), reportFileName))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
