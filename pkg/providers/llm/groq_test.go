package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

// Groq is served through OpenAILLM's OpenAI-compatible client (see
// NewGroqLLM in openai.go); this exercises the tool-calling path that the
// core-memory distiller relies on, which TestOpenAILLMGenerate doesn't cover.
func TestGroqLLMGenerateWithTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-3",
			"object":  "chat.completion",
			"created": 1,
			"model":   "llama-3.3-70b-versatile",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"role": "assistant",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "save_core_memory",
									"arguments": `{"memory_text":"likes pizza","importance_level":"high","category":"user_preference"}`,
								},
							},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	l := newTestOpenAILLM(server.URL, "groq-llm")
	calls, err := l.GenerateWithTools(context.Background(), "find facts", []orchestrator.ToolSchema{
		{Name: "save_core_memory", Description: "save a fact", Parameters: map[string]any{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0].Name != "save_core_memory" {
		t.Fatalf("expected 1 save_core_memory call, got %+v", calls)
	}
	if calls[0].Args["memory_text"] != "likes pizza" {
		t.Fatalf("expected memory_text arg to round-trip, got %+v", calls[0].Args)
	}
}
