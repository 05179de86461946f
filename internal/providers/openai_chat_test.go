package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var payload map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Ratelimit-Remaining-Requests", "7")
			_, _ = w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"created": 1,
				"model": "gpt-4o-mini",
				"choices": [{
					"index": 0,
					"finish_reason": "stop",
					"message": {"role": "assistant", "content": "{\"ok\": true}"}
				}],
				"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
			}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 1,
		})

		temp := 0.0
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				{Role: "system", Content: "be terse"},
				{Role: "user", Content: "hello"},
			},
			MaxTokens:      100,
			Temperature:    &temp,
			ResponseFormat: &ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Fatalf("expected success, got %s", result.ErrorMessage)
		}
		if result.TotalTokens != 16 {
			t.Errorf("TotalTokens = %d, want 16", result.TotalTokens)
		}
		if result.ParsedJSON == nil {
			t.Error("expected ParsedJSON")
		}
		if result.Headers.Get("X-Ratelimit-Remaining-Requests") != "7" {
			t.Errorf("expected rate limit header, got %v", result.Headers)
		}
		if payload["model"] != "gpt-4o-mini" {
			t.Errorf("model = %v", payload["model"])
		}
		msgs, _ := payload["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected 2 messages, got %d", len(msgs))
		}
		if v, ok := payload["temperature"]; !ok || v != 0.0 {
			t.Errorf("temperature = %v (present %v), want explicit 0", v, ok)
		}
	})

	t.Run("api error maps to StatusError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, MaxRetries: 1})

		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hello"}},
		})
		se, ok := AsStatusError(err)
		if !ok {
			t.Fatalf("expected *StatusError, got %v", err)
		}
		if se.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", se.StatusCode)
		}
		if se.Retryable() {
			t.Error("400 should not be retryable")
		}
	})
}
