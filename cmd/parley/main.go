// Parley - voice-interaction agent for group voice channels.
// Listens per speaker, transcribes finished utterances, generates short
// conversational replies, and speaks them back into the channel.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mwhitten/go-parley/internal/config"
	"github.com/mwhitten/go-parley/internal/log"
	"github.com/mwhitten/go-parley/pkg/capture"
	"github.com/mwhitten/go-parley/pkg/gateway"
	"github.com/mwhitten/go-parley/pkg/playback"
	"github.com/mwhitten/go-parley/pkg/reply"
	"github.com/mwhitten/go-parley/pkg/session"
	"github.com/mwhitten/go-parley/pkg/sheets"
	"github.com/mwhitten/go-parley/pkg/store"
	"github.com/mwhitten/go-parley/pkg/stt"
	"github.com/mwhitten/go-parley/pkg/tts"
	"github.com/mwhitten/go-parley/pkg/turn"
)

func main() {
	useGemini := flag.Bool("gemini", false, "Use Gemini for reply generation instead of OpenAI")
	useGoogleSTT := flag.Bool("google-stt", false, "Use Google Cloud Speech instead of OpenAI transcription")
	flag.Parse()

	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.OpenAIKey == "" {
		stdlog.Fatal("OPENAI_API_KEY is required")
	}
	if cfg.ChannelID == "" {
		stdlog.Fatal("PARLEY_CHANNEL_ID is required")
	}

	// Persistence
	st, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		stdlog.Fatalf("store: %v", err)
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		stdlog.Fatalf("store schema: %v", err)
	}

	// Spreadsheet collaborator
	sheet, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.SpreadsheetID,
		CredentialsFile: cfg.CredentialsFile,
	})
	if err != nil {
		stdlog.Fatalf("sheets: %v", err)
	}

	// Speech to text
	var transcriber stt.Provider
	if *useGoogleSTT {
		transcriber, err = stt.NewGoogle(ctx, stt.WithLanguage(cfg.Language), stt.WithLogger(logger))
	} else {
		transcriber, err = stt.NewOpenAI(
			stt.WithAPIKey(cfg.OpenAIKey),
			stt.WithLanguage(cfg.Language),
			stt.WithLogger(logger),
		)
	}
	if err != nil {
		stdlog.Fatalf("stt: %v", err)
	}
	defer transcriber.Close()

	// Reply generation
	var replier reply.Provider
	if *useGemini {
		replier, err = reply.NewGemini(ctx, reply.WithAPIKey(cfg.GeminiKey), reply.WithLogger(logger))
	} else {
		replier, err = reply.NewOpenAI(reply.WithAPIKey(cfg.OpenAIKey), reply.WithLogger(logger))
	}
	if err != nil {
		stdlog.Fatalf("reply: %v", err)
	}
	defer replier.Close()

	// Speech synthesis: OpenAI primary, ElevenLabs fallback when configured.
	synth, err := buildSynthesizer(cfg, logger)
	if err != nil {
		stdlog.Fatalf("tts: %v", err)
	}
	defer synth.Close()

	// Gateway transport
	gw, err := gateway.Dial(ctx, gateway.Config{
		URL:       cfg.GatewayURL,
		ChannelID: cfg.ChannelID,
		Logger:    logger,
	})
	if err != nil {
		stdlog.Fatalf("gateway: %v", err)
	}
	defer gw.Close()

	// Capture pipeline
	registry := session.NewRegistry()
	capturer := capture.New(capture.Config{
		SilenceTimeout: cfg.SilenceTimeout,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		TempDir:        cfg.TempDir,
	}, registry, gw, capture.WithLogger(logger))

	// Playback
	player := playback.New(playback.Config{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}, gw, playback.WithLogger(logger))

	// Orchestration
	turnCfg := turn.DefaultConfig()
	turnCfg.ContextLimit = cfg.ContextLimit
	turnCfg.TempDir = cfg.TempDir
	turnCfg.Dialog.ConfirmWindow = cfg.ConfirmWindow
	turnCfg.Dialog.FieldWindow = cfg.FieldWindow

	orch := turn.NewOrchestrator(
		turnCfg,
		transcriber,
		replier,
		synth,
		player,
		capturer,
		st,
		sheet,
		turn.WithLogger(logger),
	)

	agent := turn.NewAgent(gw, gw, capturer, orch)

	logger.Info("parley up",
		"channel", cfg.ChannelID,
		"gateway", cfg.GatewayURL,
		"silence_timeout", cfg.SilenceTimeout,
	)

	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		stdlog.Fatalf("agent: %v", err)
	}
	logger.Info("parley shut down")
}

// buildSynthesizer assembles the TTS chain: OpenAI first, ElevenLabs as a
// fallback when its key and voice are configured.
func buildSynthesizer(cfg config.Config, logger *slog.Logger) (tts.Provider, error) {
	openai, err := tts.NewOpenAI(
		tts.WithAPIKey(cfg.OpenAIKey),
		tts.WithVoice(cfg.Voice),
		tts.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	if cfg.ElevenLabsKey == "" {
		return openai, nil
	}

	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if voiceID == "" {
		return openai, nil
	}

	elevenlabs, err := tts.NewElevenLabs(
		tts.WithAPIKey(cfg.ElevenLabsKey),
		tts.WithVoice(voiceID),
		tts.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return tts.NewChainWithLogger(logger, openai, elevenlabs)
}
