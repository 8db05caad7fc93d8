// Package tools implements the research tool registry: arXiv, Wikipedia and
// web search backed by the shared document store, plus stored-document
// lookup. The registry serves both the in-process tool provider and the MCP
// server surface.
package tools

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
)

// Tool is a single invocable research tool. Call returns the tool's payload
// as a string, normally JSON. Operational failures should be encoded into
// the payload; a returned error means the tool itself could not run.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Registry is an in-process core.ToolProvider over a fixed tool set.
type Registry struct {
	tools  map[string]Tool
	order  []string
	closer []io.Closer
	logger *log.Logger
}

// NewRegistry wires the standard tool set from config. Web search is only
// registered when a Tavily API key is configured; the headless fetcher is
// shared between the tools that extract page content.
func NewRegistry(cfg config.ToolsConfig, store *docstore.Store) (*Registry, error) {
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: log.New(log.Writer(), "[TOOLS] ", log.LstdFlags),
	}

	var fetcher *Fetcher
	if cfg.FetchFullText {
		f, err := NewFetcher(cfg.Timeout, cfg.UserAgent)
		if err != nil {
			return nil, fmt.Errorf("starting fetcher: %w", err)
		}
		fetcher = f
		r.closer = append(r.closer, f)
	}

	r.register(NewArxivSearch(cfg, store, fetcher))
	r.register(NewWikipediaSearch(cfg, store))
	if cfg.TavilyAPIKey != "" {
		r.register(NewWebSearch(cfg, store, fetcher))
	}
	r.register(NewExtractInfo(store))
	return r, nil
}

func (r *Registry) register(t Tool) {
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	sort.Strings(r.order)
}

func (r *Registry) ListTools(context.Context) ([]core.ToolSpec, error) {
	specs := make([]core.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, core.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs, nil
}

func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool %q not found", name)
	}
	start := time.Now()
	out, err := t.Call(ctx, args)
	if err != nil {
		r.logger.Printf("tool %s failed after %v: %v", name, time.Since(start), err)
		return "", err
	}
	r.logger.Printf("tool %s returned %d bytes in %v", name, len(out), time.Since(start))
	return out, nil
}

// Close releases shared resources such as the headless browser.
func (r *Registry) Close() error {
	var first error
	for _, c := range r.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// argString reads a string argument, tolerating absent keys.
func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// argInt reads an integer argument; JSON decoding yields float64.
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// storageTopic picks the directory documents land in: the explicit topic if
// the caller passed one, otherwise the query itself.
func storageTopic(args map[string]any, query string) string {
	if topic := argString(args, "topic"); topic != "" {
		return docstore.NormalizeTopic(topic)
	}
	return docstore.NormalizeTopic(query)
}
