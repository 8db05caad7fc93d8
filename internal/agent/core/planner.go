package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/researcher/internal/helpers"
)

const plannerSystemPrompt = "You are a planning agent specialized in creating structured research workflows. " +
	"Your role is to break down research topics into clear, executable step-by-step plans. " +
	"Each plan must be returned as a valid JSON array of strings, where each string represents " +
	"an atomic, executable step. Steps should only reference capabilities of available agents and their tools. " +
	"Assume tool use is available - agents can use their tools to accomplish tasks. " +
	"Focus on research-related tasks like searching, summarizing, drafting, and revising. " +
	"Exclude irrelevant tasks such as file management, environment setup, or data export. " +
	"Return only the JSON array with no additional explanation."

// Planner turns a research topic into an ordered list of executable steps.
type Planner struct {
	llm         LLMProvider
	model       string
	temperature float64
	logger      *log.Logger
}

func NewPlanner(llm LLMProvider, model string, temperature float64) *Planner {
	return &Planner{
		llm:         llm,
		model:       model,
		temperature: temperature,
		logger:      log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// GeneratePlan asks the planning model for a step list. The response must be
// a JSON array of non-empty strings; anything else is a PlanParseError.
func (p *Planner) GeneratePlan(ctx context.Context, topic string) ([]string, error) {
	userPrompt := fmt.Sprintf(`Create a step-by-step research plan for the following topic.

Available agents and their capabilities:
- Research agent: Can search Wikipedia and arXiv for information
- Writer agent: Can draft, expand, and summarize research content
- Editor agent: Can reflect on, critique, and revise drafts

Requirements:
- Each step should be atomic and executable by one of the available agents
- The final step should generate a Markdown document with the complete research report

Topic: "%s"`, topic)

	resp, err := p.llm.Generate(ctx, plannerSystemPrompt, userPrompt, p.model, p.temperature)
	if err != nil {
		return nil, fmt.Errorf("planner generation: %w", err)
	}
	raw := resp.Message.Content

	steps, err := parsePlan(raw)
	if err != nil {
		return nil, &PlanParseError{Raw: raw, Err: err}
	}

	p.logger.Printf("generated research plan (%d steps)", len(steps))
	for i, step := range steps {
		p.logger.Printf("  %d. %s", i+1, step)
	}
	return steps, nil
}

func parsePlan(raw string) ([]string, error) {
	cleaned := helpers.StripCodeFences(raw)
	arr, err := helpers.ExtractJSONArray(cleaned)
	if err != nil {
		return nil, fmt.Errorf("no JSON array in response: %w", err)
	}
	var steps []string
	if err := json.Unmarshal([]byte(arr), &steps); err != nil {
		return nil, fmt.Errorf("decoding step list: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty step list")
	}
	for i, s := range steps {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("step %d is empty", i+1)
		}
	}
	return steps, nil
}
