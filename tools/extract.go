package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

// ExtractInfo looks a stored document up by ID across every topic.
type ExtractInfo struct {
	store *docstore.Store
}

func NewExtractInfo(store *docstore.Store) *ExtractInfo {
	return &ExtractInfo{store: store}
}

func (t *ExtractInfo) Name() string { return "extract_info" }

func (t *ExtractInfo) Description() string {
	return "Search for information about a specific stored document across all topic directories by its ID."
}

func (t *ExtractInfo) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"paper_id": map[string]any{"type": "string", "description": "The ID of the document to look for"},
		},
		"required": []any{"paper_id"},
	}
}

func (t *ExtractInfo) Call(_ context.Context, args map[string]any) (string, error) {
	paperID := argString(args, "paper_id")
	if paperID == "" {
		return objectError("extract_info failed: paper_id is required"), nil
	}

	doc, ok := t.store.FindByID(paperID)
	if !ok {
		return fmt.Sprintf("There's no saved information related to document %s.", paperID), nil
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(out), nil
}
