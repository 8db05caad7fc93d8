package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

func newTopicsEnv(t *testing.T) (*echo.Echo, *docstore.Store, string) {
	t.Helper()

	index, err := docstore.OpenIndex("")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })

	docs := docstore.NewStore(t.TempDir(), index)
	h := &TopicsHandler{Docs: docs, Index: index}

	e := echo.New()
	api := e.Group("/api")
	h.Register(api.Group("/topics"), testSecret)
	h.RegisterSearch(api.Group("/search"), testSecret)

	token, err := SignJWT("tester", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return e, docs, token
}

func authedGet(e *echo.Echo, token, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedPaper(t *testing.T, docs *docstore.Store, topic, title, content string) {
	t.Helper()
	doc := docstore.Normalize(map[string]any{
		"title":   title,
		"url":     "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		"content": content,
	}, docstore.SourceWeb, topic)
	if _, err := docs.Save(topic, docstore.SourceWeb, doc); err != nil {
		t.Fatalf("seed %s: %v", title, err)
	}
}

func TestListTopicsEndpoint(t *testing.T) {
	e, docs, token := newTopicsEnv(t)
	seedPaper(t, docs, "graph theory", "Graph Paper", "On planar graphs.")
	seedPaper(t, docs, "knot theory", "Knot Paper", "On trefoil knots.")

	rec := authedGet(e, token, "/api/topics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var topics []docstore.TopicInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &topics); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(topics) != 2 || topics[0].Name != "graph_theory" || topics[1].Name != "knot_theory" {
		t.Fatalf("unexpected topics %+v", topics)
	}
}

func TestListTopicsEmpty(t *testing.T) {
	e, _, token := newTopicsEnv(t)

	rec := authedGet(e, token, "/api/topics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestListPapersEndpoint(t *testing.T) {
	e, docs, token := newTopicsEnv(t)
	seedPaper(t, docs, "graph theory", "Graph Paper", "On planar graphs.")

	rec := authedGet(e, token, "/api/topics/graph%20theory/papers")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Topic  string              `json:"topic"`
		Papers []docstore.Document `json:"papers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Topic != "graph_theory" {
		t.Fatalf("expected normalized topic, got %q", payload.Topic)
	}
	if len(payload.Papers) != 1 || payload.Papers[0].Title != "Graph Paper" {
		t.Fatalf("unexpected papers %+v", payload.Papers)
	}
}

func TestReportEndpoint(t *testing.T) {
	e, docs, token := newTopicsEnv(t)
	if err := docs.SaveReport("graph theory", "# Graph Report"); err != nil {
		t.Fatalf("save report: %v", err)
	}

	rec := authedGet(e, token, "/api/topics/graph_theory/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "# Graph Report") {
		t.Fatalf("expected report body, got %s", rec.Body.String())
	}

	rec = authedGet(e, token, "/api/topics/never_researched/report")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing report, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e, docs, token := newTopicsEnv(t)
	seedPaper(t, docs, "graph theory", "Graph Paper", "On planar graphs and colorings.")
	seedPaper(t, docs, "knot theory", "Knot Paper", "On trefoil knots.")

	rec := authedGet(e, token, "/api/search?q=planar")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Query string         `json:"query"`
		Hits  []docstore.Hit `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Hits) != 1 || payload.Hits[0].Topic != "graph_theory" {
		t.Fatalf("unexpected hits %+v", payload.Hits)
	}

	rec = authedGet(e, token, "/api/search")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", rec.Code)
	}
}

func TestTopicsRequireAuth(t *testing.T) {
	e, _, _ := newTopicsEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
