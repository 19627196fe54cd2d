package transport

import (
	"context"
	"sync"
	"time"
)

// MockReceiver implements Receiver for testing. Tests push events with
// EmitSpeaking and frames with PushFrame, and end a speaker's stream with
// EndStream.
type MockReceiver struct {
	mu       sync.Mutex
	speaking chan SpeakingEvent
	streams  map[string]chan Frame
}

// NewMockReceiver creates a MockReceiver with room for buffered events.
func NewMockReceiver() *MockReceiver {
	return &MockReceiver{
		speaking: make(chan SpeakingEvent, 16),
		streams:  make(map[string]chan Frame),
	}
}

// SpeakingStarted returns the speaking-start event stream.
func (m *MockReceiver) SpeakingStarted() <-chan SpeakingEvent {
	return m.speaking
}

// Subscribe returns the frame stream for a speaker, creating it on demand.
func (m *MockReceiver) Subscribe(ctx context.Context, speakerID string) (<-chan Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.streams[speakerID]
	if !ok {
		ch = make(chan Frame, 64)
		m.streams[speakerID] = ch
	}
	return ch, nil
}

// EmitSpeaking pushes a speaking-start event.
func (m *MockReceiver) EmitSpeaking(speakerID, channelID string) {
	m.speaking <- SpeakingEvent{SpeakerID: speakerID, ChannelID: channelID}
}

// PushFrame delivers a frame to a speaker's stream.
func (m *MockReceiver) PushFrame(speakerID string, payload []byte) {
	m.mu.Lock()
	ch, ok := m.streams[speakerID]
	if !ok {
		ch = make(chan Frame, 64)
		m.streams[speakerID] = ch
	}
	m.mu.Unlock()
	ch <- Frame{SpeakerID: speakerID, Payload: payload}
}

// EndStream closes a speaker's frame stream, signalling end-of-stream.
func (m *MockReceiver) EndStream(speakerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.streams[speakerID]; ok {
		close(ch)
		delete(m.streams, speakerID)
	}
}

// Close shuts the speaking event stream down.
func (m *MockReceiver) Close() {
	close(m.speaking)
}

// SentFrame records one frame handed to MockAudioOut.
type SentFrame struct {
	ChannelID string
	Payload   []byte
	Duration  time.Duration
}

// MockAudioOut implements AudioOut and records every frame sent.
type MockAudioOut struct {
	mu     sync.Mutex
	frames []SentFrame

	// SendErr, when set, is returned from SendFrame.
	SendErr error
}

// NewMockAudioOut creates an empty MockAudioOut.
func NewMockAudioOut() *MockAudioOut {
	return &MockAudioOut{}
}

// SendFrame records the frame.
func (m *MockAudioOut) SendFrame(channelID string, payload []byte, duration time.Duration) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := make([]byte, len(payload))
	copy(p, payload)
	m.frames = append(m.frames, SentFrame{ChannelID: channelID, Payload: p, Duration: duration})
	return nil
}

// Frames returns a copy of all recorded frames.
func (m *MockAudioOut) Frames() []SentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentFrame, len(m.frames))
	copy(out, m.frames)
	return out
}

// MockTextChannel implements TextChannel with recorded sends and a
// test-controlled inbound stream.
type MockTextChannel struct {
	mu      sync.Mutex
	sent    []TextMessage
	inbound chan TextMessage
}

// NewMockTextChannel creates a MockTextChannel.
func NewMockTextChannel() *MockTextChannel {
	return &MockTextChannel{inbound: make(chan TextMessage, 16)}
}

// Send records the outbound message.
func (m *MockTextChannel) Send(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, TextMessage{ChannelID: channelID, Text: text})
	return nil
}

// Messages returns the inbound stream.
func (m *MockTextChannel) Messages() <-chan TextMessage {
	return m.inbound
}

// Receive pushes an inbound message as if a user typed it.
func (m *MockTextChannel) Receive(channelID, authorID, text string) {
	m.inbound <- TextMessage{ChannelID: channelID, AuthorID: authorID, Text: text}
}

// Sent returns a copy of all outbound messages.
func (m *MockTextChannel) Sent() []TextMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TextMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Compile-time interface checks.
var (
	_ Receiver    = (*MockReceiver)(nil)
	_ AudioOut    = (*MockAudioOut)(nil)
	_ TextChannel = (*MockTextChannel)(nil)
)
