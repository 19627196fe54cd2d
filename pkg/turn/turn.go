// Package turn sequences one conversation turn: transcription, intent
// check, reply generation, synthesis, and playback. It also hosts the
// agent loop that feeds turns from the transport's speaking events and
// text messages.
package turn

import "fmt"

// Status tracks a turn through its pipeline.
type Status int

const (
	// StatusTranscribing means the utterance artifact is at the STT adapter.
	StatusTranscribing Status = iota

	// StatusGenerating means the reply provider is producing text.
	StatusGenerating

	// StatusSynthesizing means the reply text is at the TTS adapter.
	StatusSynthesizing

	// StatusPlaying means the synthesized artifact is sounding.
	StatusPlaying

	// StatusDone is the successful terminal state. Silent short
	// transcripts land here too, with no reply.
	StatusDone

	// StatusFailed is the terminal state for any unrecovered step error.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusTranscribing:
		return "transcribing"
	case StatusGenerating:
		return "generating"
	case StatusSynthesizing:
		return "synthesizing"
	case StatusPlaying:
		return "playing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Turn is one speaker's exchange from finished utterance to played reply.
type Turn struct {
	// SpeakerID identifies who spoke.
	SpeakerID string

	// ChannelID identifies where the reply plays.
	ChannelID string

	// Status is the current pipeline position.
	Status Status

	// Transcript is the accepted STT text, empty for silent turns.
	Transcript string

	// ReplyText is the generated (or apology) reply, empty for silent
	// and dialog turns.
	ReplyText string

	// Err holds the error that moved the turn to StatusFailed.
	Err error
}
