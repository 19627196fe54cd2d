package store

import (
	"context"
	"sync"
)

// Mock implements Store in memory for testing.
type Mock struct {
	mu       sync.Mutex
	messages []Message
	logs     []LogEntry

	// Err, when set, is returned from every call.
	Err error
}

// NewMock creates an empty in-memory store.
func NewMock() *Mock {
	return &Mock{}
}

// AppendMessage records the message in memory.
func (m *Mock) AppendMessage(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// RecentContext formats the last limit messages for the channel, oldest first.
func (m *Mock) RecentContext(ctx context.Context, channelID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var matched []Message
	for _, msg := range m.messages {
		if msg.ChannelID == channelID {
			matched = append(matched, msg)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	lines := make([]string, 0, len(matched))
	for _, msg := range matched {
		lines = append(lines, msg.Actor+": "+msg.Text)
	}
	return lines, nil
}

// AppendLog records the entry in memory.
func (m *Mock) AppendLog(ctx context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.logs = append(m.logs, entry)
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Messages returns a copy of recorded messages.
func (m *Mock) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Logs returns a copy of recorded failures.
func (m *Mock) Logs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.logs))
	copy(out, m.logs)
	return out
}

// Reset clears recorded state.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.logs = nil
	m.Err = nil
}

// Verify Mock implements Store at compile time.
var _ Store = (*Mock)(nil)
