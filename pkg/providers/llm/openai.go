package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

// OpenAILLM implements orchestrator.LLMProvider over the official OpenAI
// SDK. NewGroqLLM builds one whose client uses a custom base URL, pointing
// it at Groq's OpenAI-compatible endpoint.
type OpenAILLM struct {
	client openai.Client
	model  string
	label  string
}

// NewOpenAILLM builds an OpenAILLM, defaulting to gpt-4o when model is empty.
func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		label:  "openai-llm",
	}
}

func (l *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(l.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", orchestrator.ErrLLMFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", orchestrator.ErrLLMFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

func (l *OpenAILLM) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following conversation in one concise factual sentence, suitable for long-term memory:\n\n" + text
	return l.Generate(ctx, prompt)
}

func (l *OpenAILLM) GenerateWithTools(ctx context.Context, prompt string, tools []orchestrator.ToolSchema) ([]orchestrator.ToolCall, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(l.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orchestrator.ErrLLMFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", orchestrator.ErrLLMFailed)
	}

	var calls []orchestrator.ToolCall
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{}
		}
		calls = append(calls, orchestrator.ToolCall{Name: tc.Function.Name, Args: args})
	}
	return calls, nil
}

func (l *OpenAILLM) Name() string {
	return l.label
}

// NewGroqLLM builds an LLMProvider backed by Groq's OpenAI-compatible
// endpoint, reusing the OpenAI SDK with a custom base URL.
func NewGroqLLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &OpenAILLM{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL("https://api.groq.com/openai/v1"),
		),
		model: model,
		label: "groq-llm",
	}
}
