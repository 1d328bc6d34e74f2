package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

const completionBody = `{
  "id": "gen-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "meta-llama/llama-3-8b-instruct",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " {\"items\":[]} "}}],
  "usage": {"prompt_tokens": 21, "completion_tokens": 9, "total_tokens": 30}
}`

func TestGenerateSendsChatCompletion(t *testing.T) {
	var captured map[string]any
	var auth, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	enhancer := New(server.URL, "meta-llama/llama-3-8b-instruct", Options{APIKey: "sk-test", Title: "coaching-kb"})
	gen, err := enhancer.Generate(context.Background(), "rewrite these", domain.GenerateOptions{Temperature: 0.3, TopP: 0.9, MaxTokens: 400})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gen.Text != `{"items":[]}` || gen.PromptTokens != 21 || gen.CompletionTokens != 9 {
		t.Fatalf("unexpected generation: %+v", gen)
	}
	if auth != "Bearer sk-test" || title != "coaching-kb" {
		t.Fatalf("unexpected headers: auth=%q title=%q", auth, title)
	}
	if captured["model"] != "meta-llama/llama-3-8b-instruct" || captured["max_tokens"] != float64(400) || captured["top_p"] != 0.9 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %+v", captured["messages"])
	}
}

func TestGenerateMapsServerErrorToTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "m", Options{}).Generate(context.Background(), "p", domain.GenerateOptions{})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestGenerateMapsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"no auth","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "m", Options{}).Generate(context.Background(), "p", domain.GenerateOptions{})
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestPingListsModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"m","object":"model","created":1,"owned_by":"x"}]}`))
	}))
	defer server.Close()

	if err := New(server.URL, "m", Options{}).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestPingUnreachableIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := New(url, "m", Options{}).Ping(context.Background())
	if !domain.IsKind(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}
