package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

// GoogleLLM implements orchestrator.LLMProvider over the official
// google.golang.org/genai SDK.
type GoogleLLM struct {
	client *genai.Client
	model  string
}

// NewGoogleLLM builds a GoogleLLM, defaulting to gemini-1.5-flash when model
// is empty.
func NewGoogleLLM(ctx context.Context, apiKey string, model string) (*GoogleLLM, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("init google genai client: %w", err)
	}
	return &GoogleLLM{client: client, model: model}, nil
}

func (l *GoogleLLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", orchestrator.ErrLLMFailed, err)
	}
	return textFromCandidates(resp), nil
}

func (l *GoogleLLM) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following conversation in one concise factual sentence, suitable for long-term memory:\n\n" + text
	return l.Generate(ctx, prompt)
}

func (l *GoogleLLM) GenerateWithTools(ctx context.Context, prompt string, tools []orchestrator.ToolSchema) ([]orchestrator.ToolCall, error) {
	decls, err := adaptGoogleTools(tools)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FunctionDeclarations: decls}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		},
	}

	resp, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orchestrator.ErrLLMFailed, err)
	}

	var calls []orchestrator.ToolCall
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return calls, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.FunctionCall == nil {
			continue
		}
		calls = append(calls, orchestrator.ToolCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args})
	}
	return calls, nil
}

func (l *GoogleLLM) Name() string {
	return "google-llm"
}

func textFromCandidates(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func adaptGoogleTools(tools []orchestrator.ToolSchema) ([]*genai.FunctionDeclaration, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("google provider: tool name required")
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return decls, nil
}
