package core

import (
	"context"
	"fmt"
	"strings"
)

// AgentKind identifies one of the executor agents the router can delegate to.
type AgentKind string

const (
	AgentResearch AgentKind = "research_agent"
	AgentWriter   AgentKind = "writer_agent"
	AgentEditor   AgentKind = "editor_agent"
)

// KnownAgentKinds lists every kind the orchestrator can dispatch, in the
// order they are advertised to the planner and router.
func KnownAgentKinds() []AgentKind {
	return []AgentKind{AgentResearch, AgentEditor, AgentWriter}
}

// ParseAgentKind maps a raw router answer onto the closed agent set.
func ParseAgentKind(s string) (AgentKind, bool) {
	switch AgentKind(strings.TrimSpace(s)) {
	case AgentResearch:
		return AgentResearch, true
	case AgentWriter:
		return AgentWriter, true
	case AgentEditor:
		return AgentEditor, true
	}
	return "", false
}

// ExecutionRecord is one completed workflow step. Agent keeps the raw name
// the router produced so unknown-agent steps stay visible in the history.
type ExecutionRecord struct {
	Step   string `json:"step"`
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// History accumulates execution records over a workflow run.
type History []ExecutionRecord

// Render flattens the history into the context block later steps receive.
func (h History) Render() string {
	if len(h) == 0 {
		return ""
	}
	parts := make([]string, 0, len(h))
	for i, rec := range h {
		parts = append(parts, fmt.Sprintf("Step %d executed by %s:\n%s", i+1, rec.Agent, rec.Output))
	}
	return strings.Join(parts, "\n")
}

// PlanParseError reports a planner response that could not be decoded into
// a list of steps. Raw carries the model output for diagnostics.
type PlanParseError struct {
	Raw string
	Err error
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("plan parse failed: %v", e.Err)
}

func (e *PlanParseError) Unwrap() error { return e.Err }

// RoutingParseError reports a router response that could not be decoded into
// an agent/task pair.
type RoutingParseError struct {
	Raw string
	Err error
}

func (e *RoutingParseError) Error() string {
	return fmt.Sprintf("routing parse failed: %v", e.Err)
}

func (e *RoutingParseError) Unwrap() error { return e.Err }

// ChatMessage is a single turn in a provider conversation. Role follows the
// OpenAI convention (system, user, assistant, tool).
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolSpec describes an invocable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ChatRequest bundles everything a provider needs for one completion turn.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// ChatResponse carries the assistant turn plus token accounting.
type ChatResponse struct {
	Message      ChatMessage
	InputTokens  int
	OutputTokens int
}

// Usage aggregates the token spend of one agent step.
type Usage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Record adds one completion's token counts to the running total.
func (u *Usage) Record(model string, inputTokens, outputTokens int) {
	u.Model = model
	u.InputTokens += int64(inputTokens)
	u.OutputTokens += int64(outputTokens)
}

// Total is the combined input and output token count.
func (u Usage) Total() int64 { return u.InputTokens + u.OutputTokens }

// LLMProvider abstracts a chat-completion backend.
type LLMProvider interface {
	// Generate performs a plain system+user completion with no tools.
	Generate(ctx context.Context, systemPrompt, prompt, model string, temperature float64) (*ChatResponse, error)
	// Chat performs a full conversation turn, optionally offering tools.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// GetModelInfo returns pricing and context metadata for a model.
	GetModelInfo(model string) ModelInfo
	// CalculateCost prices a call from the model's per-1K token rates.
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo describes a model's characteristics.
type ModelInfo struct {
	Name            string
	MaxTokens       int
	CostPer1K       float64
	CostPer1KOutput float64
}

// ToolProvider is the orchestrator's window onto executable tools, whether
// in-process or behind an MCP transport.
type ToolProvider interface {
	ListTools(ctx context.Context) ([]ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// DocumentStore is the slice of document storage the agents need: the
// aggregated topic collection for the writer and report persistence for the
// orchestrator.
type DocumentStore interface {
	TopicCollection(ctx context.Context, topic string) (string, error)
	SaveReport(ctx context.Context, topic, content string) error
}

// Agent executes a single routed step and reports the tokens it spent. The
// history context and topic are passed through; agents that do not need them
// ignore them.
type Agent interface {
	Kind() AgentKind
	Execute(ctx context.Context, task, historyContext, topic string) (string, Usage, error)
}
