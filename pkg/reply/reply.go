// Package reply generates conversational responses from transcribed
// utterances and recent channel context.
//
// Providers receive a Request carrying the agent persona, a window of
// recent channel messages, and the user's latest text, and return a single
// reply string. OpenAI chat completions is the primary backend; Gemini is
// available as an alternative.
package reply

import "context"

// Provider defines the reply-generation interface.
type Provider interface {
	// Generate produces a reply for the request.
	Generate(ctx context.Context, req *Request) (string, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request describes one reply-generation turn.
type Request struct {
	// Persona is the system instruction describing the agent's voice.
	Persona string

	// Context holds recent channel messages, oldest first, each already
	// formatted as "author: text".
	Context []string

	// UserText is the user's latest utterance or message.
	UserText string
}
