package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testSchema = json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}}}`)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantNil  bool
		wantErr  bool
	}{
		{name: "disabled", config: Config{}, wantNil: true},
		{name: "openai", config: Config{Provider: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "claude alias", config: Config{Provider: "Claude", APIKey: "k"}, wantName: "anthropic"},
		{name: "ollama", config: Config{Provider: "ollama", Model: "llama3.1:8b"}, wantName: "ollama"},
		{name: "openai without key", config: Config{Provider: "openai"}, wantErr: true},
		{name: "ollama without model", config: Config{Provider: "ollama"}, wantErr: true},
		{name: "unknown", config: Config{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.wantNil {
				if backend != nil {
					t.Errorf("Expected nil backend, got %T", backend)
				}
				return
			}
			if backend.Name() != tt.wantName {
				t.Errorf("Expected name %s, got %s", tt.wantName, backend.Name())
			}
		})
	}
}

func TestAnthropicBackend_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if !strings.Contains(req.Messages[0].Content, `"ok":{"type":"boolean"}`) {
			t.Error("Expected schema to be appended to the prompt")
		}

		resp := anthropicResponse{
			ID:      "msg_123",
			Type:    "message",
			Role:    "assistant",
			Content: []anthropicContent{{Type: "text", Text: "Here you go:\n```json\n{\"ok\": true}\n```"}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	backend, err := NewAnthropicBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	raw, err := backend.Resolve(context.Background(), "test", "Is it ok?", testSchema)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(raw) != `{"ok": true}` {
		t.Errorf("Unexpected JSON: %s", raw)
	}
}

func TestAnthropicBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	backend, _ := NewAnthropicBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := backend.Resolve(context.Background(), "test", "prompt", testSchema)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusTooManyRequests || !statusErr.Transient() {
		t.Errorf("Expected transient 429, got %d", statusErr.Code)
	}
	if !strings.Contains(statusErr.Message, "slow down") {
		t.Errorf("Expected API message, got %q", statusErr.Message)
	}
}

func TestAnthropicBackend_NoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "I cannot answer that."}},
		})
	}))
	defer server.Close()

	backend, _ := NewAnthropicBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := backend.Resolve(context.Background(), "test", "prompt", testSchema)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestOllamaBackend_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected stream=false")
		}
		if string(req.Format) != string(testSchema) {
			t.Errorf("Expected schema in format, got %s", req.Format)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: req.Model, Response: `{"ok":false}`, Done: true})
	}))
	defer server.Close()

	backend, err := NewOllamaBackend(Config{Model: "llama3.1:8b", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	raw, err := backend.Resolve(context.Background(), "test", "prompt", testSchema)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(raw) != `{"ok":false}` {
		t.Errorf("Unexpected JSON: %s", raw)
	}
}

func TestOllamaBackend_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	backend, _ := NewOllamaBackend(Config{Model: "m", BaseURL: server.URL})
	if !backend.IsAvailable(context.Background()) {
		t.Error("Expected backend to be available")
	}

	down, _ := NewOllamaBackend(Config{Model: "m", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	if down.IsAvailable(context.Background()) {
		t.Error("Expected unreachable backend to be unavailable")
	}
}

func TestOpenAIBackend_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		format, _ := body["response_format"].(map[string]any)
		if format["type"] != "json_schema" {
			t.Errorf("Expected json_schema response format, got %v", format["type"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[` +
			`{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	backend, err := NewOpenAIBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	raw, err := backend.Resolve(context.Background(), "test", "prompt", testSchema)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("Unexpected JSON: %s", raw)
	}
}

func TestOpenAIBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	backend, _ := NewOpenAIBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := backend.Resolve(context.Background(), "test", "prompt", testSchema)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", statusErr.Code)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "bare", text: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", text: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose", text: `Answer: {"a":{"b":2}} done`, want: `{"a":{"b":2}}`},
		{name: "none", text: "no json", wantErr: true},
		{name: "broken", text: `{"a":}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("Expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
