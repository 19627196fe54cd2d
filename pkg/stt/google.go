package stt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/mwhitten/go-parley/pkg/audiofile"
)

const providerGoogle = "google"

// Google implements Provider using Google Cloud Speech-to-Text.
// Credentials come from the standard GOOGLE_APPLICATION_CREDENTIALS
// environment.
type Google struct {
	client *speech.Client
	config *Config
	logger *slog.Logger
}

// NewGoogle creates a Google Cloud Speech provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.APIKey = "-" // credentials are ambient; skip the key check
	cfg.Apply(opts...)

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create client: %w", err))
	}

	return &Google{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "stt.google"),
	}, nil
}

// Transcribe runs batch recognition over the utterance artifact.
func (g *Google) Transcribe(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	info, err := audiofile.ReadInfo(path)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("read artifact: %w", err))
	}

	lang := g.config.Language
	if lang == "" || lang == "en" {
		lang = "en-US"
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(info.SampleRate),
			LanguageCode:    lang,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	var sb strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			sb.WriteString(result.Alternatives[0].Transcript)
		}
	}

	latency := time.Since(start).Milliseconds()
	text := strings.TrimSpace(sb.String())

	g.logger.Debug("transcribed utterance",
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{Text: text, LatencyMs: latency}, nil
}

// Health verifies the client is usable.
func (g *Google) Health(ctx context.Context) error {
	if g.client == nil {
		return WrapError(providerGoogle, ErrProviderUnavailable)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (g *Google) Close() error {
	return g.client.Close()
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
