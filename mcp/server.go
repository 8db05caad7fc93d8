// Package mcp implements a minimal stdio JSON-RPC server exposing the
// research tools and stored-document resources. Agents connect over stdio
// with "tools/list", "tools/call", "resources/list" and "resources/read".
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/docstore"
	"github.com/mohammad-safakhou/researcher/tools"
)

const (
	topicsResourceURI = "research://topics"
	topicURIPrefix    = "research://"

	callTimeout = 60 * time.Second
)

type rpcReq struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResp struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  map[string]any `json:"result,omitempty"`
	Error   *rpcError      `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResp(w io.Writer, id any, result map[string]any, err error) {
	resp := rpcResp{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ToolDesc describes a single tool, including input schema.
type ToolDesc struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ResourceDesc describes a readable resource.
type ResourceDesc struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Server exposes a tool registry and the document store over stdio JSON-RPC.
type Server struct {
	registry *tools.Registry
	store    *docstore.Store
	logger   *log.Logger
}

func NewServer(registry *tools.Registry, store *docstore.Store) *Server {
	return &Server{
		registry: registry,
		store:    store,
		logger:   log.New(log.Writer(), "[MCP] ", log.LstdFlags),
	}
}

func (s *Server) listTools(ctx context.Context) (map[string]any, error) {
	specs, err := s.registry.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	descs := make([]ToolDesc, 0, len(specs))
	for _, spec := range specs {
		descs = append(descs, ToolDesc{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
		})
	}
	return map[string]any{"tools": descs}, nil
}

func (s *Server) callTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	out, err := s.registry.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": out}},
	}, nil
}

func (s *Server) listResources() map[string]any {
	resources := []ResourceDesc{{
		URI:         topicsResourceURI,
		Name:        "topics",
		Description: "List all available research topic folders with document counts.",
	}}
	if topics, err := s.store.Topics(); err == nil {
		for _, t := range topics {
			resources = append(resources, ResourceDesc{
				URI:         topicURIPrefix + t.Name,
				Name:        t.Name,
				Description: fmt.Sprintf("Aggregated research documents for %s (%d documents).", t.Name, t.PaperCount),
			})
		}
	}
	return map[string]any{"resources": resources}
}

func (s *Server) readResource(uri string) (map[string]any, error) {
	if !strings.HasPrefix(uri, topicURIPrefix) {
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}

	var text string
	if uri == topicsResourceURI {
		topics, err := s.store.Topics()
		if err != nil {
			return nil, err
		}
		payload, err := json.MarshalIndent(map[string]any{"topics": topics}, "", "  ")
		if err != nil {
			return nil, err
		}
		text = string(payload)
	} else {
		topic := strings.TrimPrefix(uri, topicURIPrefix)
		formatted, err := s.store.FormatTopicCollection(topic)
		if err != nil {
			return nil, err
		}
		text = formatted
	}

	return map[string]any{
		"contents": []map[string]any{{"uri": uri, "text": text}},
	}, nil
}

// Serve processes requests until the reader is exhausted. Undecodable input
// lines are skipped rather than tearing the transport down.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(bufio.NewReader(in))
	for {
		var req rpcReq
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			continue
		}

		switch req.Method {
		case "tools/list":
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			res, err := s.listTools(ctx)
			cancel()
			writeResp(out, req.ID, res, err)

		case "tools/call":
			name := ""
			args := map[string]any{}
			if v, ok := req.Params["name"].(string); ok {
				name = v
			}
			if m, ok := req.Params["arguments"].(map[string]any); ok {
				args = m
			}
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			res, err := s.callTool(ctx, name, args)
			cancel()
			writeResp(out, req.ID, res, err)

		case "resources/list":
			writeResp(out, req.ID, s.listResources(), nil)

		case "resources/read":
			uri, _ := req.Params["uri"].(string)
			res, err := s.readResource(uri)
			writeResp(out, req.ID, res, err)

		default:
			writeResp(out, req.ID, nil, fmt.Errorf("unknown method: %s", req.Method))
		}
	}
}
