package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

const anthropicMaxTokens int64 = 1024

// AnthropicLLM implements orchestrator.LLMProvider over the official
// Anthropic SDK.
type AnthropicLLM struct {
	sdk   anthropic.Client
	model string
}

// NewAnthropicLLM builds an AnthropicLLM, defaulting to Claude 3.5 Sonnet
// when model is empty.
func NewAnthropicLLM(apiKey string, model string) *AnthropicLLM {
	if model == "" {
		model = string(anthropic.ModelClaude3_5SonnetLatest)
	}
	return &AnthropicLLM{
		sdk:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

func (l *AnthropicLLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := l.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", orchestrator.ErrLLMFailed, err)
	}
	return textFromBlocks(resp), nil
}

func (l *AnthropicLLM) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following conversation in one concise factual sentence, suitable for long-term memory:\n\n" + text
	return l.Generate(ctx, prompt)
}

func (l *AnthropicLLM) GenerateWithTools(ctx context.Context, prompt string, tools []orchestrator.ToolSchema) ([]orchestrator.ToolCall, error) {
	toolParams, err := adaptAnthropicTools(tools)
	if err != nil {
		return nil, err
	}

	resp, err := l.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Tools:     toolParams,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orchestrator.ErrLLMFailed, err)
	}

	var calls []orchestrator.ToolCall
	for _, block := range resp.Content {
		if use, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			var args map[string]any
			if err := json.Unmarshal(use.Input, &args); err != nil {
				args = map[string]any{}
			}
			calls = append(calls, orchestrator.ToolCall{Name: use.Name, Args: args})
		}
	}
	return calls, nil
}

func (l *AnthropicLLM) Name() string {
	return "anthropic-llm"
}

func textFromBlocks(resp *anthropic.Message) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}

func adaptAnthropicTools(tools []orchestrator.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("anthropic provider: tool name required")
		}
		schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}})
	}
	return out, nil
}
