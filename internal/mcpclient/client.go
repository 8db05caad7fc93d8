// Package mcpclient talks to a research MCP server over stdio JSON-RPC. It
// spawns the server as a subprocess and satisfies the tool provider contract
// the agents consume.
package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

const (
	defaultCallTimeout = 90 * time.Second
	maxJSONFrameBytes  = 1 << 20
)

// Client is a stdio JSON-RPC client over a spawned MCP server process.
// Requests are serialized; the server answers in order.
type Client struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Reader
	mu  sync.Mutex
	seq int64
}

// Start launches the server command and wires its stdio.
func Start(ctx context.Context, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Client{cmd: cmd, in: stdin, out: bufio.NewReader(stdout)}, nil
}

type rpcReq struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcResp struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Result  map[string]any `json:"result,omitempty"`
	Error   *rpcError      `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) send(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	req := rpcReq{JSONRPC: "2.0", ID: c.seq, Method: method, Params: params}
	b, _ := json.Marshal(req)
	b = append(b, '\n')
	if _, err := c.in.Write(b); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(defaultCallTimeout)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("mcp: timeout for %s", method)
		}
		var buf bytes.Buffer
		for {
			frag, err := c.out.ReadBytes('\n')
			buf.Write(frag)
			if buf.Len() > maxJSONFrameBytes {
				return nil, fmt.Errorf("mcp: frame too large")
			}
			if err == nil {
				break
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			if !errors.Is(err, bufio.ErrBufferFull) {
				return nil, err
			}
		}
		// Servers may emit log noise on stdout; skip anything that is not
		// a JSON object line.
		line := bytes.TrimSpace(buf.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var resp rpcResp
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("mcp error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

// ListTools fetches the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]core.ToolSpec, error) {
	res, err := c.send(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	raw, ok := res["tools"].([]any)
	if !ok {
		return nil, errors.New("invalid tools/list response")
	}
	out := make([]core.ToolSpec, 0, len(raw))
	for _, v := range raw {
		b, _ := json.Marshal(v)
		var t struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"input_schema"`
		}
		_ = json.Unmarshal(b, &t)
		out = append(out, core.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out, nil
}

// CallTool invokes a tool and flattens the text content blocks of the reply.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.send(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return "", err
	}
	return flattenContent(res, "content")
}

// ReadResource reads a research:// resource and returns its text.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	res, err := c.send(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return "", err
	}
	return flattenContent(res, "contents")
}

func flattenContent(res map[string]any, key string) (string, error) {
	raw, ok := res[key].([]any)
	if !ok {
		return "", fmt.Errorf("invalid %s in response", key)
	}
	var buf bytes.Buffer
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := m["text"].(string); ok {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(text)
		}
	}
	return buf.String(), nil
}

// Close shuts the server process down by closing its stdin and waiting.
func (c *Client) Close() error {
	_ = c.in.Close()
	return c.cmd.Wait()
}
