package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ragqa/internal/domain"
)

const testKeyEnv = "RAGQA_TEST_API_KEY"

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	t.Setenv(testKeyEnv, "test-key")
	c, err := NewClient(Config{
		BaseURL:        url + "/v1",
		APIKeyEnv:      testKeyEnv,
		Model:          "test-model",
		Timeout:        2 * time.Second,
		MaxRetries:     retries,
		RetryBaseDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "test-id",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "test_error"},
	})
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	_, err := NewClient(Config{APIKeyEnv: testKeyEnv}, nil)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewClient() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "test-model" || body.MaxTokens != 1000 {
			t.Errorf("unexpected request: model=%s max_tokens=%d", body.Model, body.MaxTokens)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", body.Messages)
		}
		if !strings.Contains(body.Messages[1].Content, "文档片段1: 贾宝玉") {
			t.Errorf("context missing from user prompt: %q", body.Messages[1].Content)
		}
		writeCompletion(w, "宝玉是主人公。")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	got, err := c.Generate(context.Background(), "宝玉是谁？", []domain.Chunk{{Content: "贾宝玉"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "宝玉是主人公。" {
		t.Errorf("Generate() = %q", got)
	}
}

func TestClient_Generate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind string
	}{
		{
			name:     "authentication",
			handler:  func(w http.ResponseWriter, r *http.Request) { writeError(w, http.StatusUnauthorized, "bad key") },
			wantKind: domain.KindAuthentication,
		},
		{
			name:     "rate limit",
			handler:  func(w http.ResponseWriter, r *http.Request) { writeError(w, http.StatusTooManyRequests, "slow down") },
			wantKind: domain.KindRateLimit,
		},
		{
			name:     "server error",
			handler:  func(w http.ResponseWriter, r *http.Request) { writeError(w, http.StatusInternalServerError, "boom") },
			wantKind: domain.KindAPI,
		},
		{
			name:     "empty content",
			handler:  func(w http.ResponseWriter, r *http.Request) { writeCompletion(w, "  ") },
			wantKind: domain.KindEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, 1).Generate(context.Background(), "q", nil)
			var genErr *domain.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q (%v)", genErr.Kind, tt.wantKind, err)
			}
		})
	}
}

func TestClient_Generate_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeError(w, http.StatusTooManyRequests, "slow down")
			return
		}
		writeCompletion(w, "ok")
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL, 3).Generate(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "ok" || calls.Load() != 3 {
		t.Errorf("got %q after %d calls", got, calls.Load())
	}
}

func TestClient_Generate_NoRetryOnAuth(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusUnauthorized, "bad key")
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 3).Generate(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestClient_Generate_Network(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, 0).Generate(context.Background(), "q", nil)
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != domain.KindNetwork {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	if got := retryDelay(200*time.Millisecond, 0); got != 200*time.Millisecond {
		t.Errorf("retryDelay(0) = %v", got)
	}
	if got := retryDelay(200*time.Millisecond, 10); got != 5*time.Second {
		t.Errorf("retryDelay(10) = %v, want cap", got)
	}
}
