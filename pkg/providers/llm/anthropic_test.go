package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

func newTestAnthropicLLM(serverURL string) *AnthropicLLM {
	return &AnthropicLLM{
		sdk:   anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(serverURL)),
		model: "claude-3-5-sonnet-latest",
	}
}

func TestAnthropicLLMGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "hello from anthropic"},
			},
			"model":         "claude-3-5-sonnet-latest",
			"stop_reason":   "end_turn",
			"usage":         map[string]any{"input_tokens": 5, "output_tokens": 5},
		})
	}))
	defer server.Close()

	l := newTestAnthropicLLM(server.URL)
	resp, err := l.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello from anthropic" {
		t.Errorf("expected 'hello from anthropic', got %q", resp)
	}
	if l.Name() != "anthropic-llm" {
		t.Errorf("expected anthropic-llm, got %s", l.Name())
	}
}

func TestAnthropicLLMGenerateWrapsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	l := newTestAnthropicLLM(server.URL)
	_, err := l.Generate(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), orchestrator.ErrLLMFailed.Error()) {
		t.Fatalf("expected a wrapped ErrLLMFailed, got %v", err)
	}
}

func TestAnthropicLLMGenerateWithToolsExtractsCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_2",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{
					"type":  "tool_use",
					"id":    "toolu_1",
					"name":  "save_core_memory",
					"input": map[string]any{"memory_text": "likes cats"},
				},
			},
			"model":       "claude-3-5-sonnet-latest",
			"stop_reason": "tool_use",
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 5},
		})
	}))
	defer server.Close()

	l := newTestAnthropicLLM(server.URL)
	calls, err := l.GenerateWithTools(context.Background(), "find facts", []orchestrator.ToolSchema{
		{Name: "save_core_memory", Description: "save a fact", Parameters: map[string]any{}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0].Name != "save_core_memory" {
		t.Fatalf("expected 1 save_core_memory call, got %+v", calls)
	}
	if calls[0].Args["memory_text"] != "likes cats" {
		t.Fatalf("expected memory_text arg to round-trip, got %+v", calls[0].Args)
	}
}

func TestAdaptAnthropicToolsRejectsBlankName(t *testing.T) {
	_, err := adaptAnthropicTools([]orchestrator.ToolSchema{{Name: "  "}})
	if err == nil {
		t.Fatal("expected an error for a blank tool name")
	}
}

func TestAdaptAnthropicToolsEmptyInput(t *testing.T) {
	out, err := adaptAnthropicTools(nil)
	if err != nil || out != nil {
		t.Fatalf("expected nil/nil for no tools, got %+v %v", out, err)
	}
}
