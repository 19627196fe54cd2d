package reply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": " Good morning! "}}]}`))
	}))
	defer server.Close()

	provider, err := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	text, err := provider.Generate(context.Background(), &Request{
		Persona:  "You are a cheerful companion.",
		Context:  []string{"alice: hi there", "agent: hello alice"},
		UserText: "how are you today?",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if text != "Good morning!" {
		t.Errorf("text = %q", text)
	}

	if len(gotReq.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "You are a cheerful companion." {
		t.Errorf("persona message = %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Role != "system" || !strings.Contains(gotReq.Messages[1].Content, "alice: hi there") {
		t.Errorf("context message = %+v", gotReq.Messages[1])
	}
	if gotReq.Messages[2].Role != "user" || gotReq.Messages[2].Content != "how are you today?" {
		t.Errorf("user message = %+v", gotReq.Messages[2])
	}
}

func TestOpenAIGenerateNoContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want 2 without context", len(req.Messages))
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	defer provider.Close()

	if _, err := provider.Generate(context.Background(), &Request{
		Persona:  "persona",
		UserText: "hi",
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestOpenAIGenerateEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	defer provider.Close()

	_, err := provider.Generate(context.Background(), &Request{UserText: "hi"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	defer provider.Close()

	_, err := provider.Generate(context.Background(), &Request{UserText: "hi"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsUnauthorized() {
		t.Error("expected unauthorized")
	}
	if apiErr.IsRetryable() {
		t.Error("401 should not be retryable")
	}
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAI(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestMockRecordsRequests(t *testing.T) {
	mock := NewMock("hello")

	text, err := mock.Generate(context.Background(), &Request{UserText: "hi"})
	if err != nil || text != "hello" {
		t.Fatalf("Generate = %q, %v", text, err)
	}

	if mock.CallCount != 1 {
		t.Errorf("CallCount = %d", mock.CallCount)
	}
	if got := mock.LastRequest(); got == nil || got.UserText != "hi" {
		t.Errorf("LastRequest = %+v", got)
	}

	mock.WithError(errors.New("down"))
	if _, err := mock.Generate(context.Background(), &Request{UserText: "again"}); err == nil {
		t.Error("expected configured error")
	}
}
