package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// Aggregate budget for a formatted topic collection. Documents share a total
// character budget so document count does not cause unbounded prompt growth.
const (
	targetTotalTokens   = 25000
	charsPerToken       = 4
	perDocFloor         = 5000
	perDocReserve       = 2000
	defaultPerDocBudget = 8000
)

var sourcePriority = map[string]int{
	SourceArxiv:     0,
	SourceWikipedia: 1,
	SourceWeb:       2,
}

func priorityOf(source string) int {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return 3
}

// PerDocBudget computes the character budget for each document in a
// collection of count documents: max(floor, total/count - reserve).
func PerDocBudget(count int) int {
	if count <= 0 {
		return defaultPerDocBudget
	}
	budget := targetTotalTokens*charsPerToken/count - perDocReserve
	if budget < perDocFloor {
		return perDocFloor
	}
	return budget
}

// FormatTopicCollection renders every stored document for a topic as one
// markdown aggregate. Documents are sorted by source priority then title, and
// each is truncated to the per-document budget rather than dropped.
func (s *Store) FormatTopicCollection(topic string) (string, error) {
	docs, skipped, err := s.ListForTopic(topic)
	if err != nil {
		return "", err
	}
	norm := NormalizeTopic(topic)
	if len(docs) == 0 {
		return fmt.Sprintf("# No documents found for topic: %s\n\nTry searching for documents on this topic first using arxiv_search, web_search, or wikipedia_search.", norm), nil
	}
	if skipped > 0 {
		s.logger.Printf("skipped %d files with no content for topic %s", skipped, norm)
	}

	sort.Slice(docs, func(i, j int) bool {
		pi, pj := priorityOf(docs[i].Source), priorityOf(docs[j].Source)
		if pi != pj {
			return pi < pj
		}
		return docs[i].Title < docs[j].Title
	})

	counts := map[string]int{}
	for _, d := range docs {
		counts[d.Source]++
	}
	var sourceNames []string
	for name := range counts {
		sourceNames = append(sourceNames, name)
	}
	sort.Strings(sourceNames)
	var summaryParts []string
	for _, name := range sourceNames {
		summaryParts = append(summaryParts, fmt.Sprintf("%d %s", counts[name], name))
	}

	title := titleCase(strings.ReplaceAll(norm, "_", " "))
	var b strings.Builder
	fmt.Fprintf(&b, "# Documents on %s\n\nTotal documents: %d (%s)\n\n", title, len(docs), strings.Join(summaryParts, ", "))

	budget := PerDocBudget(len(docs))
	for _, d := range docs {
		b.WriteString(formatDocumentMarkdown(d, budget))
	}
	return b.String(), nil
}

// formatDocumentMarkdown renders one document as a markdown section,
// truncating content over maxContentLength with an explicit marker.
func formatDocumentMarkdown(doc Document, maxContentLength int) string {
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	content := doc.Content
	original := len(content)
	if original > maxContentLength {
		summary := str(doc.Extra["summary"])
		if summary != "" && doc.Source == SourceArxiv {
			// Keep the abstract and lead with as much full text as still fits.
			remaining := maxContentLength - len(summary) - 500
			if remaining > 0 {
				content = fmt.Sprintf("%s\n\n[Full text truncated for length - showing first %d characters of %d total]\n\n%s...",
					summary, remaining, original, content[:remaining])
			} else {
				content = summary
			}
		} else {
			content = content[:maxContentLength] + fmt.Sprintf("...\n\n[Content truncated - showing first %d characters of %d total]", maxContentLength, original)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "- **Source**: %s\n", strings.ToUpper(doc.Source))
	if doc.URL != "" {
		fmt.Fprintf(&b, "- **URL**: [%s](%s)\n", doc.URL, doc.URL)
	}

	switch doc.Source {
	case SourceArxiv:
		if authors := strSlice(doc.Extra["authors"]); len(authors) > 0 {
			fmt.Fprintf(&b, "- **Authors**: %s\n", strings.Join(authors, ", "))
		}
		if v := str(doc.Extra["published"]); v != "" {
			fmt.Fprintf(&b, "- **Published**: %s\n", v)
		}
		if v := str(doc.Extra["pdf_url"]); v != "" {
			fmt.Fprintf(&b, "- **PDF**: [%s](%s)\n", v, v)
		}
		if v := str(doc.Extra["doi"]); v != "" {
			fmt.Fprintf(&b, "- **DOI**: %s\n", v)
		}
		if v := str(doc.Extra["primary_category"]); v != "" {
			fmt.Fprintf(&b, "- **Category**: %s\n", v)
		}
		fmt.Fprintf(&b, "\n### Content\n%s\n\n", content)
	case SourceWikipedia:
		summary := str(doc.Extra["summary"])
		if summary != "" && summary != content {
			fmt.Fprintf(&b, "\n### Summary\n%s\n\n", summary)
		}
		fmt.Fprintf(&b, "\n### Full Content\n%s\n\n", content)
	case SourceWeb:
		if score, ok := doc.Extra["score"].(float64); ok {
			fmt.Fprintf(&b, "- **Relevance Score**: %.2f\n", score)
		}
		fmt.Fprintf(&b, "\n### Content\n%s\n\n", content)
	default:
		fmt.Fprintf(&b, "\n### Content\n%s\n\n", content)
	}
	b.WriteString("---\n\n")
	return b.String()
}

func strSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
