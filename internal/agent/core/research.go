package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/telemetry"
)

const researchSystemPrompt = "You are a research assistant specialized in gathering and synthesizing information from external sources. " +
	"Your role is to use available tools to search for information and compile findings into clear, comprehensive research summaries. " +
	"Use tools when helpful and always synthesize the information into a coherent summary."

// researchToolNames is the subset of provider tools the research agent is
// allowed to call. Search tools also accept a topic argument so every stored
// document lands under the same topic directory.
var researchToolNames = map[string]bool{
	"arxiv_search":     true,
	"wikipedia_search": true,
}

// ResearchAgent runs a bounded tool-calling loop against the search tools
// and returns a synthesized summary.
type ResearchAgent struct {
	llm       LLMProvider
	tools     ToolProvider
	model     string
	wf        *config.WorkflowConfig
	telemetry *telemetry.Telemetry
	now       func() time.Time
	logger    *log.Logger
}

func NewResearchAgent(llm LLMProvider, tools ToolProvider, model string, wf *config.WorkflowConfig, tele *telemetry.Telemetry) *ResearchAgent {
	return &ResearchAgent{
		llm:       llm,
		tools:     tools,
		model:     model,
		wf:        wf,
		telemetry: tele,
		now:       time.Now,
		logger:    log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
	}
}

func (a *ResearchAgent) Kind() AgentKind { return AgentResearch }

func (a *ResearchAgent) availableTools(ctx context.Context) ([]ToolSpec, error) {
	all, err := a.tools.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	var filtered []ToolSpec
	for _, t := range all {
		if researchToolNames[t.Name] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no research tools available")
	}
	return filtered, nil
}

// Execute runs the research loop: the model may request tool calls for up to
// MaxToolTurns turns, tool results feed back into the conversation, and the
// loop ends on the first turn with no tool calls. Tool failures become error
// payloads in the conversation rather than aborting the step.
func (a *ResearchAgent) Execute(ctx context.Context, task, historyContext, topic string) (string, Usage, error) {
	tools, err := a.availableTools(ctx)
	if err != nil {
		return "", Usage{}, err
	}

	historyContext = truncateWithMarker(historyContext, "Context", a.wf.ResearchContextMax)
	contextSection := ""
	if historyContext != "" {
		contextSection = "\n\nContext from previous steps:\n" + historyContext
	}
	userPrompt := fmt.Sprintf(`Today is %s.

Available tools:
- arxiv_search: find academic papers from arXiv
- wikipedia_search: access encyclopedic knowledge

Your task:
%s%s`, a.now().Format("2006-01-02"), task, contextSection)

	messages := []ChatMessage{
		{Role: "system", Content: researchSystemPrompt},
		{Role: "user", Content: userPrompt},
	}

	var usage Usage
	lastContent := ""
	for turn := 0; turn < a.wf.MaxToolTurns; turn++ {
		resp, err := a.llm.Chat(ctx, ChatRequest{
			Model:    a.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", usage, fmt.Errorf("research turn %d: %w", turn+1, err)
		}
		usage.Record(a.model, resp.InputTokens, resp.OutputTokens)

		assistant := resp.Message
		assistant.Role = "assistant"
		messages = append(messages, assistant)
		lastContent = assistant.Content

		if len(assistant.ToolCalls) == 0 {
			break
		}

		for _, tc := range assistant.ToolCalls {
			args := tc.Arguments
			if args == nil {
				args = map[string]any{}
			}
			if researchToolNames[tc.Name] && topic != "" {
				args["topic"] = topic
			}
			result := a.callTool(ctx, tc.Name, args)
			result = truncateWithMarker(result, "Tool result", a.wf.ToolResultMax)
			messages = append(messages, ChatMessage{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    result,
			})
			lastContent = result
		}
	}

	if lastContent == "" {
		return "No content generated.", usage, nil
	}
	return lastContent, usage, nil
}

// callTool never returns an error: failures are serialized as JSON error
// payloads so the model can react to them. Every invocation is reported to
// telemetry with its outcome and timing.
func (a *ResearchAgent) callTool(ctx context.Context, name string, args map[string]any) string {
	start := time.Now()
	result, err := a.tools.CallTool(ctx, name, args)
	if a.telemetry != nil {
		event := telemetry.ToolEvent{
			ID:        uuid.NewString(),
			Tool:      name,
			StartTime: start,
			EndTime:   time.Now(),
			Duration:  time.Since(start),
			Success:   err == nil,
			Results:   resultCount(result),
		}
		if err != nil {
			event.Error = err.Error()
		}
		a.telemetry.RecordToolEvent(ctx, event)
	}
	if err != nil {
		a.logger.Printf("tool %s failed: %v", name, err)
		payload, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("Tool execution failed: %v", err)})
		return string(payload)
	}
	return result
}

// resultCount inspects a tool payload for a result list. Payloads carry
// either a bare JSON array or an object with a "results" array.
func resultCount(payload string) int {
	var obj struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(payload), &obj); err == nil && obj.Results != nil {
		return len(obj.Results)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &arr); err == nil {
		return len(arr)
	}
	return 0
}
