package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwhitten/go-parley/internal/httpc"
)

const (
	openAITranscribeURL = "https://api.openai.com/v1/audio/transcriptions"
	providerOpenAI      = "openai"
)

// OpenAI implements Provider for OpenAI's transcription endpoint.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates a new OpenAI transcription provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAITranscribeURL
	}

	return &OpenAI{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.openai"),
		baseURL: baseURL,
	}, nil
}

// Transcribe uploads the utterance artifact and returns the transcript.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("open artifact: %w", err))
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create form file: %w", err))
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("copy artifact: %w", err))
	}
	if err := mw.WriteField("model", o.config.ModelID); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	if o.config.Language != "" {
		if err := mw.WriteField("language", o.config.Language); err != nil {
			return nil, WrapError(providerOpenAI, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, &body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, o.parseError(resp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}

	text := strings.TrimSpace(result.Text)

	o.logger.Debug("transcribed utterance",
		"artifact", filepath.Base(path),
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{Text: text, LatencyMs: latency}, nil
}

// Health checks API connectivity.
func (o *OpenAI) Health(ctx context.Context) error {
	url := "https://api.openai.com/v1/models"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (o *OpenAI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerOpenAI,
	}
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
