package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// scriptedLLM replays canned responses. Generate responses are matched by a
// substring of the system prompt so one fake can serve planner, router, and
// writer in the same run.
type scriptedLLM struct {
	mu        sync.Mutex
	generate  map[string][]string // system prompt substring -> queued responses
	chat      []ChatResponse
	chatCalls []ChatRequest
	genCalls  []genCall
}

type genCall struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
}

// Every scripted Generate response reports the same token counts so tests
// can predict usage totals.
const (
	genInputTokens  = 120
	genOutputTokens = 45
)

func (f *scriptedLLM) Generate(_ context.Context, systemPrompt, prompt, model string, temperature float64) (*ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls = append(f.genCalls, genCall{System: systemPrompt, Prompt: prompt, Model: model, Temperature: temperature})
	for key, queue := range f.generate {
		if strings.Contains(systemPrompt, key) {
			if len(queue) == 0 {
				return nil, fmt.Errorf("no scripted response left for %q", key)
			}
			resp := queue[0]
			f.generate[key] = queue[1:]
			return &ChatResponse{
				Message:      ChatMessage{Role: "assistant", Content: resp},
				InputTokens:  genInputTokens,
				OutputTokens: genOutputTokens,
			}, nil
		}
	}
	return nil, fmt.Errorf("no scripted response for system prompt %q", systemPrompt)
}

func (f *scriptedLLM) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls = append(f.chatCalls, req)
	if len(f.chat) == 0 {
		return nil, fmt.Errorf("no scripted chat response left")
	}
	resp := f.chat[0]
	f.chat = f.chat[1:]
	return &resp, nil
}

func (f *scriptedLLM) GetModelInfo(model string) ModelInfo {
	return ModelInfo{Name: model, CostPer1K: 0.01, CostPer1KOutput: 0.03}
}

func (f *scriptedLLM) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	info := f.GetModelInfo(model)
	return float64(inputTokens)/1000.0*info.CostPer1K + float64(outputTokens)/1000.0*info.CostPer1KOutput
}

// recordingTools records calls and returns canned results per tool name.
type recordingTools struct {
	mu      sync.Mutex
	specs   []ToolSpec
	results map[string]string
	errs    map[string]error
	calls   []toolCallRecord
	closed  bool
}

type toolCallRecord struct {
	Name string
	Args map[string]any
}

func (f *recordingTools) ListTools(context.Context) ([]ToolSpec, error) {
	return f.specs, nil
}

func (f *recordingTools) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toolCallRecord{Name: name, Args: args})
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	return f.results[name], nil
}

func (f *recordingTools) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func searchToolSpecs() []ToolSpec {
	return []ToolSpec{
		{Name: "arxiv_search", Description: "find academic papers", InputSchema: map[string]any{"type": "object"}},
		{Name: "wikipedia_search", Description: "encyclopedic knowledge", InputSchema: map[string]any{"type": "object"}},
		{Name: "web_search", Description: "general web search", InputSchema: map[string]any{"type": "object"}},
	}
}

// memoryDocs is an in-memory DocumentStore.
type memoryDocs struct {
	mu          sync.Mutex
	collections map[string]string
	reports     map[string]string
	collectErr  error
	saveErr     error
}

func newMemoryDocs() *memoryDocs {
	return &memoryDocs{
		collections: make(map[string]string),
		reports:     make(map[string]string),
	}
}

func (f *memoryDocs) TopicCollection(_ context.Context, topic string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collectErr != nil {
		return "", f.collectErr
	}
	return f.collections[topic], nil
}

func (f *memoryDocs) SaveReport(_ context.Context, topic, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.reports[topic] = content
	return nil
}
