// Package transport defines the narrow interfaces between the conversation
// pipeline and the chat platform. The platform delivers compressed audio
// frames per speaker and plain text messages; the pipeline hands back opus
// frames for playback and text replies. Implementations live in pkg/gateway
// (real platform) and in this package's mocks (tests).
package transport

import (
	"context"
	"time"
)

// Frame is one compressed audio frame from a speaker.
type Frame struct {
	// SpeakerID identifies who produced the frame.
	SpeakerID string

	// Payload is the opus-encoded audio data.
	Payload []byte
}

// SpeakingEvent signals that a speaker started talking in a channel.
type SpeakingEvent struct {
	SpeakerID string
	ChannelID string
}

// Receiver delivers inbound voice activity from the platform.
type Receiver interface {
	// SpeakingStarted returns the stream of speaking-start events.
	// The channel is closed when the transport shuts down.
	SpeakingStarted() <-chan SpeakingEvent

	// Subscribe opens a frame stream for one speaker. The returned channel
	// is closed when the platform signals end-of-stream for that speaker.
	// Cancel the context to stop receiving early.
	Subscribe(ctx context.Context, speakerID string) (<-chan Frame, error)
}

// AudioOut carries synthesized audio back into a channel's voice output.
type AudioOut interface {
	// SendFrame writes one opus frame covering the given duration of audio.
	SendFrame(channelID string, payload []byte, duration time.Duration) error
}

// TextMessage is a plain text message seen in a channel.
type TextMessage struct {
	ChannelID string
	AuthorID  string
	Text      string
}

// TextChannel sends and receives plain text messages.
type TextChannel interface {
	// Send posts a text message to a channel.
	Send(ctx context.Context, channelID, text string) error

	// Messages returns the stream of inbound text messages.
	// The channel is closed when the transport shuts down.
	Messages() <-chan TextMessage
}
