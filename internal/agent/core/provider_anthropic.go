package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mohammad-safakhou/researcher/config"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements LLMProvider on the official Anthropic SDK.
type AnthropicProvider struct {
	config    config.LLMProvider
	models    map[string]ModelInfo
	rawModels map[string]config.LLMModel
	client    anthropic.Client
}

func NewAnthropicProvider(cfg config.LLMProvider) *AnthropicProvider {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	provider := &AnthropicProvider{
		config:    cfg,
		models:    make(map[string]ModelInfo),
		rawModels: cfg.Models,
		client:    anthropic.NewClient(option.WithAPIKey(key)),
	}
	for k, model := range cfg.Models {
		provider.models[k] = ModelInfo{
			Name:            model.Name,
			MaxTokens:       model.MaxTokens,
			CostPer1K:       model.CostPer1K,
			CostPer1KOutput: model.CostPer1KOutput,
		}
	}
	return provider
}

func (p *AnthropicProvider) apiModel(model string) string {
	if m, ok := p.rawModels[model]; ok {
		if m.APIName != "" {
			return m.APIName
		}
		if m.Name != "" {
			return m.Name
		}
	}
	return model
}

func (p *AnthropicProvider) Generate(ctx context.Context, systemPrompt, prompt, model string, temperature float64) (*ChatResponse, error) {
	return p.Chat(ctx, ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
}

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		if info, ok := p.models[req.Model]; ok && info.MaxTokens > 0 {
			maxTokens = info.MaxTokens
		} else {
			maxTokens = anthropicDefaultMaxTokens
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.apiModel(req.Model)),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "user":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
			}
		case "tool":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	for _, t := range req.Tools {
		var schema anthropic.ToolInputSchemaParam
		if props, ok := t.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.InputSchema["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	result := &ChatResponse{
		Message:      ChatMessage{Role: "assistant"},
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if result.Message.Content != "" {
				result.Message.Content += "\n"
			}
			result.Message.Content += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &args); err != nil {
					return nil, fmt.Errorf("decode tool input for %s: %w", b.Name, err)
				}
			}
			result.Message.ToolCalls = append(result.Message.ToolCalls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	return result, nil
}

func (p *AnthropicProvider) GetModelInfo(model string) ModelInfo {
	if info, ok := p.models[model]; ok {
		return info
	}
	return ModelInfo{Name: model}
}

// CalculateCost prices a call from the per-1K token rates in config.
func (p *AnthropicProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	info := p.GetModelInfo(model)
	return float64(inputTokens)/1000.0*info.CostPer1K + float64(outputTokens)/1000.0*info.CostPer1KOutput
}
