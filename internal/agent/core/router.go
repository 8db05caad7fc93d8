package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/researcher/internal/helpers"
)

const routerSystemPrompt = "You are an execution manager for a multi-agent research team. " +
	"Your role is to analyze instructions and route them to the appropriate specialized agent. " +
	"For each instruction, identify which agent should handle it and extract a clean, actionable task description. " +
	"Always return only a valid JSON object with no explanations or markdown formatting."

// Router maps a plan step onto an agent name and a clean task description.
// Routing runs at temperature zero so the same step resolves the same way.
type Router struct {
	llm    LLMProvider
	model  string
	logger *log.Logger
}

func NewRouter(llm LLMProvider, model string) *Router {
	return &Router{
		llm:    llm,
		model:  model,
		logger: log.New(log.Writer(), "[ROUTER] ", log.LstdFlags),
	}
}

type routingDecision struct {
	Agent *string `json:"agent"`
	Task  *string `json:"task"`
}

// DecideAgent returns the raw agent name and task for a step. A response
// missing either key is a RoutingParseError; an agent name outside the known
// set is returned as-is and left for the caller to handle.
func (r *Router) DecideAgent(ctx context.Context, step string) (string, string, error) {
	userPrompt := fmt.Sprintf(`Route the following instruction to the appropriate agent.

Available agents:
- research_agent: Handles research tasks like searching arXiv, web, and Wikipedia
- writer_agent: Handles writing tasks like drafting, expanding, or summarizing text
- editor_agent: Handles editorial tasks like reflecting, critiquing, or revising drafts

Return a JSON object with two keys:
- "agent": one of ["research_agent", "editor_agent", "writer_agent"]
- "task": a string with the instruction that the agent should follow

Instruction: "%s"`, step)

	resp, err := r.llm.Generate(ctx, routerSystemPrompt, userPrompt, r.model, 0)
	if err != nil {
		return "", "", fmt.Errorf("router generation: %w", err)
	}
	raw := resp.Message.Content

	agent, task, err := parseRouting(raw)
	if err != nil {
		return "", "", &RoutingParseError{Raw: raw, Err: err}
	}
	r.logger.Printf("routed step to %s: %s", agent, task)
	return agent, task, nil
}

func parseRouting(raw string) (string, string, error) {
	cleaned := helpers.StripCodeFences(raw)
	obj, err := helpers.ExtractJSON(cleaned)
	if err != nil {
		return "", "", fmt.Errorf("no JSON object in response: %w", err)
	}
	var decision routingDecision
	if err := json.Unmarshal([]byte(obj), &decision); err != nil {
		return "", "", fmt.Errorf("decoding routing decision: %w", err)
	}
	if decision.Agent == nil || *decision.Agent == "" {
		return "", "", fmt.Errorf("missing agent in routing decision")
	}
	if decision.Task == nil {
		return "", "", fmt.Errorf("missing task in routing decision")
	}
	return *decision.Agent, *decision.Task, nil
}
