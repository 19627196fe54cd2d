// Package stt provides a unified interface for speech-to-text providers.
//
// A provider takes the path of a finished utterance artifact (PCM16 WAV) and
// returns the transcript. OpenAI transcription is the primary backend;
// Google Cloud Speech is available as an alternative. All providers
// implement the Provider interface, enabling switching without changing
// caller code.
//
// Example usage:
//
//	provider, _ := stt.NewOpenAI(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    stt.WithLanguage("en"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Transcribe(ctx, "/tmp/utt_1234.wav")
//	// result.Text contains the transcript
package stt

import "context"

// Provider defines the speech-to-text interface.
type Provider interface {
	// Transcribe converts the utterance artifact at path to text.
	Transcribe(ctx context.Context, path string) (*Result, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Result is a completed transcription.
type Result struct {
	// Text is the transcript, whitespace-trimmed.
	Text string

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}
