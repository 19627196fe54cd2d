// Package config provides environment-backed configuration for go-parley.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for tunable pipeline parameters.
const (
	DefaultSilenceTimeout = 2 * time.Second
	DefaultSampleRate     = 48000
	DefaultChannels       = 1
	DefaultContextLimit   = 5
	DefaultConfirmWindow  = 30 * time.Second
	DefaultFieldWindow    = 60 * time.Second
	DefaultLanguage       = "en"
	DefaultVoice          = "onyx"
)

// Config holds all settings for the voice agent.
type Config struct {
	// Platform gateway
	GatewayURL string
	ChannelID  string

	// Service credentials
	OpenAIKey     string
	GeminiKey     string
	ElevenLabsKey string

	// Persistence
	DatabaseURL string

	// Spreadsheet collaborator
	SpreadsheetID   string
	CredentialsFile string

	// Pipeline tuning
	SilenceTimeout time.Duration
	SampleRate     int
	Channels       int
	TempDir        string
	Language       string
	Voice          string
	ContextLimit   int

	// Confirmation dialog windows
	ConfirmWindow time.Duration
	FieldWindow   time.Duration

	// Observability
	LogLevel string
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		GatewayURL: env("PARLEY_GATEWAY_URL", "ws://localhost:8443"),
		ChannelID:  env("PARLEY_CHANNEL_ID", ""),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsKey: os.Getenv("ELEVENLABS_API_KEY"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),

		SilenceTimeout: envDuration("PARLEY_SILENCE_TIMEOUT_MS", DefaultSilenceTimeout),
		SampleRate:     envInt("PARLEY_SAMPLE_RATE", DefaultSampleRate),
		Channels:       DefaultChannels,
		TempDir:        env("PARLEY_TEMP_DIR", os.TempDir()),
		Language:       env("PARLEY_LANGUAGE", DefaultLanguage),
		Voice:          env("PARLEY_VOICE", DefaultVoice),
		ContextLimit:   envInt("PARLEY_CONTEXT_LIMIT", DefaultContextLimit),

		ConfirmWindow: envDuration("PARLEY_CONFIRM_WINDOW_MS", DefaultConfirmWindow),
		FieldWindow:   envDuration("PARLEY_FIELD_WINDOW_MS", DefaultFieldWindow),

		LogLevel: env("LOG_LEVEL", "info"),
	}
}

// env returns the value of the variable or the fallback if unset.
func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of the variable or the fallback.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration reads a millisecond count from the variable.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
