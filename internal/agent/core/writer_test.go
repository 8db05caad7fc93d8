package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWriterAgentIncludesStoredDocuments(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"writing agent": {"# Final Report"},
	}}
	docs := newMemoryDocs()
	docs.collections["quantum computing"] = "# Documents on Quantum Computing\n\n## Paper One"
	a := NewWriterAgent(llm, docs, "gpt-4o", testWorkflowConfig())

	out, usage, err := a.Execute(context.Background(), "Write the report", "earlier findings", "quantum computing")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "# Final Report" {
		t.Fatalf("output = %q", out)
	}
	if usage.Model != "gpt-4o" || usage.InputTokens != genInputTokens || usage.OutputTokens != genOutputTokens {
		t.Fatalf("usage = %+v", usage)
	}

	prompt := llm.genCalls[0].Prompt
	docIdx := strings.Index(prompt, "Stored Research Documents:")
	ctxIdx := strings.Index(prompt, "Context from previous steps:")
	taskIdx := strings.Index(prompt, "Your task:")
	if docIdx == -1 || ctxIdx == -1 || taskIdx == -1 {
		t.Fatalf("prompt missing sections:\n%s", prompt)
	}
	if !(docIdx < ctxIdx && ctxIdx < taskIdx) {
		t.Fatalf("sections out of order: docs=%d ctx=%d task=%d", docIdx, ctxIdx, taskIdx)
	}
	if !strings.Contains(prompt, "## Paper One") {
		t.Fatalf("stored documents not in prompt")
	}
}

func TestWriterAgentDegradesWithoutDocuments(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"writing agent": {"draft"},
	}}
	docs := newMemoryDocs()
	a := NewWriterAgent(llm, docs, "gpt-4o", testWorkflowConfig())

	if _, _, err := a.Execute(context.Background(), "Write", "", "unseen topic"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	prompt := llm.genCalls[0].Prompt
	if strings.Contains(prompt, "Stored Research Documents:") {
		t.Fatalf("empty collection should omit documents section:\n%s", prompt)
	}
	if prompt != "Your task:\nWrite" {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestWriterAgentDegradesOnRetrievalError(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"writing agent": {"draft"},
	}}
	docs := newMemoryDocs()
	docs.collectErr = errors.New("store offline")
	a := NewWriterAgent(llm, docs, "gpt-4o", testWorkflowConfig())

	out, _, err := a.Execute(context.Background(), "Write", "", "topic")
	if err != nil {
		t.Fatalf("retrieval failure should not fail the step: %v", err)
	}
	if out != "draft" {
		t.Fatalf("output = %q", out)
	}
}

func TestWriterAgentTruncatesContext(t *testing.T) {
	wf := testWorkflowConfig()
	wf.WriterContextMax = 30

	llm := &scriptedLLM{generate: map[string][]string{
		"writing agent": {"draft"},
	}}
	a := NewWriterAgent(llm, newMemoryDocs(), "gpt-4o", wf)

	big := strings.Repeat("x", 100)
	if _, _, err := a.Execute(context.Background(), "Write", big, "topic"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	prompt := llm.genCalls[0].Prompt
	if !strings.Contains(prompt, "[Context truncated - showing first 30 characters of 100 total]") {
		t.Fatalf("marker missing:\n%s", prompt)
	}
}

func TestEditorAgentPromptAndTemperature(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"editor agent": {"revised draft"},
	}}
	a := NewEditorAgent(llm, "gpt-4o")

	out, usage, err := a.Execute(context.Background(), "Revise the intro", "Step 1 executed by writer_agent:\ndraft", "ignored topic")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "revised draft" {
		t.Fatalf("output = %q", out)
	}
	if usage.Model != "gpt-4o" || usage.Total() != genInputTokens+genOutputTokens {
		t.Fatalf("usage = %+v", usage)
	}
	call := llm.genCalls[0]
	if call.Temperature != 0.7 {
		t.Fatalf("temperature = %v", call.Temperature)
	}
	if !strings.HasPrefix(call.Prompt, "Here is the context of what has been done so far:") {
		t.Fatalf("prompt = %q", call.Prompt)
	}
	if !strings.Contains(call.Prompt, "Your task:\nRevise the intro") {
		t.Fatalf("task missing: %q", call.Prompt)
	}
}

func TestEditorAgentWithoutContextSendsBareTask(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"editor agent": {"feedback"},
	}}
	a := NewEditorAgent(llm, "gpt-4o")

	if _, _, err := a.Execute(context.Background(), "Critique this", "", ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if llm.genCalls[0].Prompt != "Critique this" {
		t.Fatalf("prompt = %q", llm.genCalls[0].Prompt)
	}
}
