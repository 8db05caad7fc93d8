package core

import (
	"fmt"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/telemetry"
)

// NewLLMProvider creates an LLM provider based on configuration. The first
// configured provider wins; multi-provider routing is not supported yet.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai":
			return NewOpenAIProvider(provider), nil
		case "anthropic":
			return NewAnthropicProvider(provider), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}

	return nil, fmt.Errorf("no valid LLM providers found")
}

// NewAgents builds the executor agent registry keyed by routed agent name.
func NewAgents(cfg *config.Config, llm LLMProvider, docs DocumentStore, tools ToolProvider, tele *telemetry.Telemetry) map[AgentKind]Agent {
	return map[AgentKind]Agent{
		AgentResearch: NewResearchAgent(llm, tools, cfg.Models.Research, &cfg.Workflow, tele),
		AgentWriter:   NewWriterAgent(llm, docs, cfg.Models.Writer, &cfg.Workflow),
		AgentEditor:   NewEditorAgent(llm, cfg.Models.Editor),
	}
}
