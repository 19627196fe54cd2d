package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const providerGemini = "gemini"

// Gemini implements Provider using the Google Gemini API.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini reply provider.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.ModelID = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "reply.gemini"),
	}, nil
}

// Generate produces a reply via Gemini.
func (g *Gemini) Generate(ctx context.Context, req *Request) (string, error) {
	start := time.Now()

	userText := req.UserText
	if len(req.Context) > 0 {
		userText = "Recent channel messages:\n" + strings.Join(req.Context, "\n") +
			"\n\nLatest message: " + req.UserText
	}
	contents := []*genai.Content{
		genai.NewContentFromText(userText, genai.RoleUser),
	}

	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.config.MaxTokens),
		Temperature:     genai.Ptr(g.config.Temperature),
	}
	if req.Persona != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.Persona, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.ModelID, contents, genCfg)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", WrapError(providerGemini, ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", WrapError(providerGemini, ErrEmptyResponse)
	}

	g.logger.Debug("generated reply",
		"model", g.config.ModelID,
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
}

// Health verifies the client is usable.
func (g *Gemini) Health(ctx context.Context) error {
	if g.client == nil {
		return WrapError(providerGemini, ErrProviderUnavailable)
	}
	return nil
}

// Close releases resources. The genai client holds no persistent
// connection, so this is a no-op.
func (g *Gemini) Close() error {
	return nil
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
