package docstore

import (
	"testing"
)

func TestIndexSearchFindsStoredDocuments(t *testing.T) {
	ix, err := OpenIndex("")
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()

	s := NewStore(t.TempDir(), ix)
	doc := Normalize(map[string]any{
		"title":   "Quantum Error Correction",
		"content": "surface codes and logical qubits",
		"url":     "https://example.com/qec",
	}, SourceWeb, "quantum error correction")
	if _, err := s.Save("quantum computing", SourceWeb, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	hits, err := ix.Search("logical qubits", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Topic != "quantum_computing" || hits[0].Source != SourceWeb {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}

	hits, err = ix.Search("unrelated zebra habitats", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}
