package core

import (
	"context"
	"fmt"
)

const editorSystemPrompt = "You are an editor agent. Your role is to reflect on, critique, and improve " +
	"drafts by analyzing clarity, structure, coherence, and academic quality. " +
	"Provide thoughtful, constructive feedback or revisions to strengthen the text."

// EditorAgent critiques and revises drafts. It is stateless and works purely
// from the task and accumulated context.
type EditorAgent struct {
	llm   LLMProvider
	model string
}

func NewEditorAgent(llm LLMProvider, model string) *EditorAgent {
	return &EditorAgent{llm: llm, model: model}
}

func (a *EditorAgent) Kind() AgentKind { return AgentEditor }

func (a *EditorAgent) Execute(ctx context.Context, task, historyContext, _ string) (string, Usage, error) {
	userContent := task
	if historyContext != "" {
		userContent = fmt.Sprintf("Here is the context of what has been done so far:\n%s\n\nYour task:\n%s",
			historyContext, task)
	}
	resp, err := a.llm.Generate(ctx, editorSystemPrompt, userContent, a.model, 0.7)
	if err != nil {
		return "", Usage{}, fmt.Errorf("editor generation: %w", err)
	}
	var usage Usage
	usage.Record(a.model, resp.InputTokens, resp.OutputTokens)
	return resp.Message.Content, usage, nil
}
