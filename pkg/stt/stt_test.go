package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "utt_test.wav")
	if err := os.WriteFile(path, []byte("RIFFfakewav"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestOpenAITranscribe(t *testing.T) {
	var gotModel, gotLanguage, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  hello there  "}`))
	}))
	defer server.Close()

	provider, err := NewOpenAI(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	result, err := provider.Transcribe(context.Background(), writeArtifact(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if result.Text != "hello there" {
		t.Errorf("Text = %q, want %q", result.Text, "hello there")
	}
	if gotModel != "gpt-4o-mini-transcribe" {
		t.Errorf("model = %q, want default", gotModel)
	}
	if gotLanguage != "en" {
		t.Errorf("language = %q, want en", gotLanguage)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestOpenAITranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	_, err = provider.Transcribe(context.Background(), writeArtifact(t))
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsRateLimited() {
		t.Error("expected rate limit error")
	}
	if !apiErr.IsRetryable() {
		t.Error("rate limit should be retryable")
	}
	if apiErr.Message != "rate limit exceeded" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestOpenAIMissingArtifact(t *testing.T) {
	provider, err := NewOpenAI(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	_, err = provider.Transcribe(context.Background(), "/nonexistent/utt.wav")
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if provErr.Provider != "openai" {
		t.Errorf("Provider = %q", provErr.Provider)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryable  bool
		rateLimit  bool
		unauth     bool
		serverSide bool
	}{
		{"unauthorized", 401, false, false, true, false},
		{"rate limited", 429, true, true, false, false},
		{"server error", 503, true, false, false, true},
		{"bad request", 400, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &APIError{StatusCode: tt.status, Provider: "openai"}
			if got := e.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := e.IsRateLimited(); got != tt.rateLimit {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.rateLimit)
			}
			if got := e.IsUnauthorized(); got != tt.unauth {
				t.Errorf("IsUnauthorized() = %v, want %v", got, tt.unauth)
			}
			if got := e.IsServerError(); got != tt.serverSide {
				t.Errorf("IsServerError() = %v, want %v", got, tt.serverSide)
			}
		})
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("openai", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestMockTracksCalls(t *testing.T) {
	mock := NewMock("the weather is nice")

	result, err := mock.Transcribe(context.Background(), "/tmp/a.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "the weather is nice" {
		t.Errorf("Text = %q", result.Text)
	}

	mock.Transcribe(context.Background(), "/tmp/b.wav")

	if mock.CallCount != 2 {
		t.Errorf("CallCount = %d, want 2", mock.CallCount)
	}
	if len(mock.Calls) != 2 || mock.Calls[1] != "/tmp/b.wav" {
		t.Errorf("Calls = %v", mock.Calls)
	}

	mock.Reset()
	if mock.CallCount != 0 || len(mock.Calls) != 0 {
		t.Error("Reset did not clear call tracking")
	}
}

func TestMockWithError(t *testing.T) {
	wantErr := errors.New("service down")
	mock := NewMock("ignored").WithError(wantErr)

	if _, err := mock.Transcribe(context.Background(), "/tmp/a.wav"); !errors.Is(err, wantErr) {
		t.Errorf("Transcribe err = %v, want %v", err, wantErr)
	}
	if err := mock.Health(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Health err = %v, want %v", err, wantErr)
	}
}

func TestMockLatencyRespectsContext(t *testing.T) {
	mock := NewMock("slow").WithLatency(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := mock.Transcribe(ctx, "/tmp/a.wav")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Transcribe did not abort on context cancellation")
	}
}
