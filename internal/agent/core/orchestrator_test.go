package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/telemetry"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Models.Planner = "gpt-4o"
	cfg.Models = cfg.Models.Normalize()
	cfg.Workflow = cfg.Workflow.Normalize()
	return cfg
}

func TestRunExecutesFullWorkflow(t *testing.T) {
	llm := &scriptedLLM{
		generate: map[string][]string{
			"planning agent": {`["Research quantum computing", "Critique the findings", "Write the final Markdown report"]`},
			"execution manager": {
				`{"agent": "research_agent", "task": "Search for quantum computing papers"}`,
				`{"agent": "editor_agent", "task": "Critique the findings"}`,
				`{"agent": "writer_agent", "task": "Write the final report"}`,
			},
			"editor agent":  {"The findings look solid."},
			"writing agent": {"```markdown\n# Quantum Computing Report\n```"},
		},
		chat: []ChatResponse{
			{Message: ChatMessage{ToolCalls: []ToolCall{
				{ID: "call_1", Name: "arxiv_search", Arguments: map[string]any{"query": "quantum"}},
			}}},
			{Message: ChatMessage{Content: "Found three relevant papers."}},
		},
	}
	tools := &recordingTools{
		specs:   searchToolSpecs(),
		results: map[string]string{"arxiv_search": `{"results": [{"title": "Paper"}]}`},
	}
	docs := newMemoryDocs()
	o := NewOrchestrator(testConfig(), llm, docs, tools, nil)

	result, err := o.Run(context.Background(), "quantum computing", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.History) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(result.History))
	}
	if result.History[0].Agent != "research_agent" || result.History[2].Agent != "writer_agent" {
		t.Fatalf("unexpected agents: %+v", result.History)
	}
	if result.History[0].Output != "Found three relevant papers." {
		t.Fatalf("research output = %q", result.History[0].Output)
	}

	// Tool call carried the run topic for consistent storage.
	if got := tools.calls[0].Args["topic"]; got != "quantum computing" {
		t.Fatalf("topic arg = %v", got)
	}

	// Later steps see the rendered history of earlier ones.
	var editorPrompt string
	for _, call := range llm.genCalls {
		if strings.Contains(call.System, "editor agent") {
			editorPrompt = call.Prompt
		}
	}
	if !strings.Contains(editorPrompt, "Step 1 executed by research_agent:\nFound three relevant papers.") {
		t.Fatalf("editor did not receive history context:\n%s", editorPrompt)
	}

	// The final report is fence-stripped and persisted.
	if result.Report != "# Quantum Computing Report" {
		t.Fatalf("report = %q", result.Report)
	}
	if docs.reports["quantum computing"] != "# Quantum Computing Report" {
		t.Fatalf("saved report = %q", docs.reports["quantum computing"])
	}
	if result.ID == "" {
		t.Fatal("run ID not assigned")
	}
}

func TestRunLimitsPlanSteps(t *testing.T) {
	steps := make([]string, 12)
	routes := make([]string, 0, 5)
	edits := make([]string, 0, 5)
	for i := range steps {
		steps[i] = fmt.Sprintf(`"Step number %d"`, i+1)
	}
	for i := 0; i < 5; i++ {
		routes = append(routes, fmt.Sprintf(`{"agent": "editor_agent", "task": "Task %d"}`, i+1))
		edits = append(edits, fmt.Sprintf("output %d", i+1))
	}
	llm := &scriptedLLM{generate: map[string][]string{
		"planning agent":    {"[" + strings.Join(steps, ", ") + "]"},
		"execution manager": routes,
		"editor agent":      edits,
	}}
	o := NewOrchestrator(testConfig(), llm, newMemoryDocs(), &recordingTools{specs: searchToolSpecs()}, nil)

	result, err := o.Run(context.Background(), "topic", RunOptions{LimitSteps: true, MaxSteps: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.History) != 5 {
		t.Fatalf("expected 5 steps executed, got %d", len(result.History))
	}
}

func TestRunContinuesPastUnknownAgent(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"planning agent": {`["Summarize prior art", "Revise the summary"]`},
		"execution manager": {
			`{"agent": "summarizer_agent", "task": "Summarize"}`,
			`{"agent": "editor_agent", "task": "Revise"}`,
		},
		"editor agent": {"revised"},
	}}
	docs := newMemoryDocs()
	o := NewOrchestrator(testConfig(), llm, docs, &recordingTools{specs: searchToolSpecs()}, nil)

	result, err := o.Run(context.Background(), "topic", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.History) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.History))
	}
	first := result.History[0]
	if first.Agent != "summarizer_agent" {
		t.Fatalf("agent = %q", first.Agent)
	}
	if first.Output != "⚠️ Unknown agent: summarizer_agent" {
		t.Fatalf("output = %q", first.Output)
	}
	if result.History[1].Output != "revised" {
		t.Fatalf("second step did not run: %+v", result.History[1])
	}
}

func TestRunAbortsOnPlanParseError(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"planning agent": {"I refuse to answer in JSON."},
	}}
	o := NewOrchestrator(testConfig(), llm, newMemoryDocs(), &recordingTools{specs: searchToolSpecs()}, nil)

	_, err := o.Run(context.Background(), "topic", RunOptions{})
	var parseErr *PlanParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected PlanParseError, got %v", err)
	}
}

func TestRunAbortsOnRoutingParseError(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"planning agent":    {`["First step", "Second step"]`},
		"execution manager": {`{"agent": "editor_agent", "task": "ok"}`, "not json at all"},
		"editor agent":      {"done"},
	}}
	o := NewOrchestrator(testConfig(), llm, newMemoryDocs(), &recordingTools{specs: searchToolSpecs()}, nil)

	result, err := o.Run(context.Background(), "topic", RunOptions{})
	var parseErr *RoutingParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected RoutingParseError, got %v", err)
	}
	if len(result.History) != 1 {
		t.Fatalf("expected partial history of 1, got %d", len(result.History))
	}
}

func TestRunSwallowsReportSaveFailure(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"planning agent":    {`["Write the report"]`},
		"execution manager": {`{"agent": "writer_agent", "task": "Write"}`},
		"writing agent":     {"# Report"},
	}}
	docs := newMemoryDocs()
	docs.saveErr = errors.New("disk full")
	o := NewOrchestrator(testConfig(), llm, docs, &recordingTools{specs: searchToolSpecs()}, nil)

	result, err := o.Run(context.Background(), "topic", RunOptions{})
	if err != nil {
		t.Fatalf("save failure should not fail the run: %v", err)
	}
	if result.Report != "# Report" {
		t.Fatalf("report = %q", result.Report)
	}
}

func TestOrchestratorCloseReleasesTools(t *testing.T) {
	tools := &recordingTools{specs: searchToolSpecs()}
	o := NewOrchestrator(testConfig(), &scriptedLLM{}, newMemoryDocs(), tools, nil)

	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !tools.closed {
		t.Fatal("tool provider not closed")
	}
}

func TestHistoryRender(t *testing.T) {
	h := History{
		{Step: "a", Agent: "research_agent", Output: "found things"},
		{Step: "b", Agent: "writer_agent", Output: "wrote things"},
	}
	want := "Step 1 executed by research_agent:\nfound things\nStep 2 executed by writer_agent:\nwrote things"
	if got := h.Render(); got != want {
		t.Fatalf("Render = %q", got)
	}
	if (History{}).Render() != "" {
		t.Fatal("empty history should render empty")
	}
}

func TestRunAccountsTokenSpend(t *testing.T) {
	llm := &scriptedLLM{generate: map[string][]string{
		"planning agent":    {`["Write the report"]`},
		"execution manager": {`{"agent": "writer_agent", "task": "Write"}`},
		"writing agent":     {"# Report"},
	}}
	tele := telemetry.NewTelemetry(config.TelemetryConfig{Enabled: true})
	o := NewOrchestrator(testConfig(), llm, newMemoryDocs(), &recordingTools{specs: searchToolSpecs()}, tele)

	result, err := o.Run(context.Background(), "topic", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantTokens := int64(genInputTokens + genOutputTokens)
	if result.TokensUsed != wantTokens {
		t.Fatalf("tokens used = %d, want %d", result.TokensUsed, wantTokens)
	}
	wantCost := llm.CalculateCost(genInputTokens, genOutputTokens, "gpt-4o")
	if math.Abs(result.Cost-wantCost) > 1e-9 {
		t.Fatalf("cost = %v, want %v", result.Cost, wantCost)
	}

	m := tele.GetMetrics()
	if m.LLMRequests["gpt-4o"] != 1 {
		t.Fatalf("LLM requests = %v", m.LLMRequests)
	}
	if m.LLMTokensUsed["gpt-4o"] != wantTokens {
		t.Fatalf("LLM tokens = %v", m.LLMTokensUsed)
	}
	c := tele.GetCosts()
	if c.TotalTokens != wantTokens {
		t.Fatalf("total tokens = %d", c.TotalTokens)
	}
	if c.ModelCosts["gpt-4o"] <= 0 {
		t.Fatalf("model costs = %v", c.ModelCosts)
	}
}
