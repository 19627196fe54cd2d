package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAISynthesizePCM(t *testing.T) {
	pcm := make([]byte, 48000) // one second at 24kHz PCM16

	var gotPayload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.Write(pcm)
	}))
	defer server.Close()

	provider, err := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(result.Audio) != len(pcm) {
		t.Errorf("audio bytes = %d, want %d", len(result.Audio), len(pcm))
	}
	if result.Format.Encoding != EncodingPCM24 || result.Format.SampleRate != 24000 {
		t.Errorf("format = %+v", result.Format)
	}
	if result.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", result.Duration)
	}
	if gotPayload["response_format"] != "pcm" {
		t.Errorf("response_format = %v, want pcm", gotPayload["response_format"])
	}
	if gotPayload["voice"] != VoiceOnyx {
		t.Errorf("voice = %v, want onyx default", gotPayload["voice"])
	}
}

func TestOpenAISynthesizeEmptyText(t *testing.T) {
	provider, err := NewOpenAI(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	if _, err := provider.Synthesize(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(make([]byte, 480))
	}))
	defer server.Close()

	provider, err := NewOpenAI(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithRetry(3, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	if _, err := provider.Synthesize(context.Background(), "retry me"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestElevenLabsRequiresVoice(t *testing.T) {
	_, err := NewElevenLabs(WithAPIKey("test-key"))
	if !errors.Is(err, ErrNoVoiceID) {
		t.Errorf("err = %v, want ErrNoVoiceID", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "el-key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if got := r.URL.Query().Get("output_format"); got != string(EncodingPCM24) {
			t.Errorf("output_format = %q", got)
		}
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["text"] != "good evening" {
			t.Errorf("text = %v", payload["text"])
		}
		w.Write(make([]byte, 2400))
	}))
	defer server.Close()

	provider, err := NewElevenLabs(
		WithAPIKey("el-key"),
		WithVoice("voice-123"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "good evening")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.Format.SampleRate != 24000 {
		t.Errorf("SampleRate = %d", result.Format.SampleRate)
	}
}

func TestChainFallback(t *testing.T) {
	failing := NewMock().WithError(errors.New("primary down"))
	working := NewMock()

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "fallback test")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result == nil || len(result.Audio) == 0 {
		t.Error("expected audio from fallback provider")
	}
	if failing.CallCount("Synthesize") != 1 || working.CallCount("Synthesize") != 1 {
		t.Error("expected both providers to be tried once")
	}
}

func TestChainAllFail(t *testing.T) {
	a := NewMock().WithError(errors.New("a down"))
	b := NewMock().WithError(errors.New("b down"))

	chain, _ := NewChain(a, b)

	_, err := chain.Synthesize(context.Background(), "doomed")
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %T: %v", err, err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Errors = %d, want 2", len(chainErr.Errors))
	}
}

func TestChainRequiresProvider(t *testing.T) {
	if _, err := NewChain(); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := []struct {
		enc  Encoding
		want int
	}{
		{EncodingPCM16, 16000},
		{EncodingPCM22, 22050},
		{EncodingPCM24, 24000},
		{EncodingPCM44, 44100},
		{Encoding("unknown"), 24000},
	}

	for _, tt := range tests {
		if got := SampleRateFromEncoding(tt.enc); got != tt.want {
			t.Errorf("SampleRateFromEncoding(%q) = %d, want %d", tt.enc, got, tt.want)
		}
	}
}

func TestMockSilencePacing(t *testing.T) {
	mock := NewMock()

	result, err := mock.Synthesize(context.Background(), "12345")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(result.Audio) != 5*960 {
		t.Errorf("audio bytes = %d", len(result.Audio))
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v", result.Duration)
	}
}
