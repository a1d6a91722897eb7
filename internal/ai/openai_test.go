package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ldi/telepathic/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Schema map[string]any `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func toolCallCompletion(id, name, args string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-0",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id":       id,
					"type":     "function",
					"function": map[string]any{"name": name, "arguments": args},
				}},
			},
		}},
	}
}

// fakeAPI serves scripted chat completion responses and records requests.
type fakeAPI struct {
	mu        sync.Mutex
	responses []map[string]any
	requests  []chatRequest
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		if len(f.responses) == 0 {
			f.mu.Unlock()
			http.Error(w, `{"error":{"message":"no more responses"}}`, http.StatusInternalServerError)
			return
		}
		resp := f.responses[0]
		f.responses = f.responses[1:]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewOpenAIClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
}

func TestText(t *testing.T) {
	api := &fakeAPI{responses: []map[string]any{completion("  Bring an umbrella.  ")}}
	client := newTestClient(t, api)

	got, err := client.Text(context.Background(), "Assist me with: walk dog ")
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if got != "Bring an umbrella." {
		t.Errorf("unexpected answer %q", got)
	}
	if api.requests[0].Model != DefaultModel {
		t.Errorf("expected default model, got %q", api.requests[0].Model)
	}
}

func TestStructured(t *testing.T) {
	api := &fakeAPI{responses: []map[string]any{
		completion("```json\n{\"assistType\":\"Phone\",\"assistData\":\"555-0100\"}\n```"),
	}}
	client := newTestClient(t, api)

	var out models.AssistClassification
	if err := client.Structured(context.Background(), "classify", &out); err != nil {
		t.Fatalf("Structured failed: %v", err)
	}
	if out.AssistType != models.AssistPhone || out.AssistData != "555-0100" {
		t.Errorf("unexpected result %+v", out)
	}

	req := api.requests[0]
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
		t.Fatalf("expected json_schema response format, got %+v", req.ResponseFormat)
	}
	props, _ := req.ResponseFormat.JSONSchema.Schema["properties"].(map[string]any)
	assist, _ := props["assistType"].(map[string]any)
	if assist["type"] != "string" {
		t.Errorf("expected assistType described as string enum, got %v", assist)
	}
	if len(req.Tools) != 0 {
		t.Errorf("expected no tools, got %d", len(req.Tools))
	}
}

func TestStructuredToolLoop(t *testing.T) {
	api := &fakeAPI{responses: []map[string]any{
		toolCallCompletion("call_1", "is_nearby", `{"pointOfInterest":"grocery store"}`),
		completion(`{"tasks":[{"title":"Buy milk","priorityReasoning":"store is close"}],"personalized_greeting":"Hi!"}`),
	}}
	client := newTestClient(t, api)

	var gotPOI string
	tool := server.ServerTool{
		Tool: mcp.NewTool("is_nearby", mcp.WithString("pointOfInterest", mcp.Required())),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			gotPOI = mcp.ParseString(req, "pointOfInterest", "")
			return mcp.NewToolResultText("true - You are 20.00m away from grocery store"), nil
		},
	}

	var out models.PriorityTaskResult
	if err := client.Structured(context.Background(), "prioritize", &out, tool); err != nil {
		t.Fatalf("Structured failed: %v", err)
	}

	if gotPOI != "grocery store" {
		t.Errorf("expected tool invoked with grocery store, got %q", gotPOI)
	}
	if len(out.Tasks) != 1 || out.Tasks[0].Title != "Buy milk" || out.PersonalizedGreeting != "Hi!" {
		t.Errorf("unexpected result %+v", out)
	}

	if len(api.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(api.requests))
	}
	if len(api.requests[0].Tools) != 1 || api.requests[0].Tools[0].Function.Name != "is_nearby" {
		t.Errorf("expected is_nearby offered, got %+v", api.requests[0].Tools)
	}
	second := api.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" || !strings.HasPrefix(last.Content, "true - ") {
		t.Errorf("expected tool result message, got %+v", last)
	}
}

func TestStructuredToolLoopIsBounded(t *testing.T) {
	var responses []map[string]any
	for i := 0; i <= maxToolRounds; i++ {
		responses = append(responses, toolCallCompletion("call", "is_nearby", `{}`))
	}
	api := &fakeAPI{responses: responses}
	client := newTestClient(t, api)

	tool := server.ServerTool{
		Tool: mcp.NewTool("is_nearby"),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("false"), nil
		},
	}

	var out models.PriorityTaskResult
	if err := client.Structured(context.Background(), "prioritize", &out, tool); err == nil {
		t.Fatal("expected error when the model never stops calling tools")
	}
	last := api.requests[len(api.requests)-1]
	if len(last.Tools) != 0 {
		t.Errorf("expected tools withheld on the final round, got %d", len(last.Tools))
	}
}

func TestStructuredErrors(t *testing.T) {
	t.Run("Invalid JSON", func(t *testing.T) {
		api := &fakeAPI{responses: []map[string]any{completion("not json")}}
		client := newTestClient(t, api)
		var out models.AssistClassification
		if err := client.Structured(context.Background(), "classify", &out); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("Server error", func(t *testing.T) {
		api := &fakeAPI{}
		client := newTestClient(t, api)
		var out models.AssistClassification
		if err := client.Structured(context.Background(), "classify", &out); err == nil {
			t.Error("expected error from failing backend")
		}
	})
}

func TestInvokeToolUnknown(t *testing.T) {
	api := &fakeAPI{responses: []map[string]any{
		toolCallCompletion("call_x", "teleport", `{}`),
		completion(`{"assistType":"None","assistData":""}`),
	}}
	client := newTestClient(t, api)

	var out models.AssistClassification
	if err := client.Structured(context.Background(), "classify", &out, server.ServerTool{
		Tool: mcp.NewTool("is_nearby"),
	}); err != nil {
		t.Fatalf("Structured failed: %v", err)
	}
	msgs := api.requests[1].Messages
	if !strings.Contains(msgs[len(msgs)-1].Content, "unknown tool") {
		t.Errorf("expected unknown tool error fed back, got %q", msgs[len(msgs)-1].Content)
	}
}
