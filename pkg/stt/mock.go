package stt

import (
	"context"
	"sync"
	"time"
)

// Mock is a mock STT provider for testing.
// Configure behavior via function fields, or use the default canned result.
type Mock struct {
	mu sync.Mutex

	// TranscribeFunc overrides the default Transcribe behavior.
	TranscribeFunc func(ctx context.Context, path string) (*Result, error)

	// HealthFunc overrides the default Health behavior.
	HealthFunc func(ctx context.Context) error

	// Text is returned by the default Transcribe implementation.
	Text string

	// Err, when set, is returned by every call.
	Err error

	// Latency is simulated before returning.
	Latency time.Duration

	// Calls records the artifact paths passed to Transcribe.
	Calls []string

	// CallCount tracks total Transcribe invocations.
	CallCount int

	closed bool
}

// NewMock creates a mock provider that transcribes everything to text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// Transcribe records the call and returns the configured result.
func (m *Mock) Transcribe(ctx context.Context, path string) (*Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, path)
	m.CallCount++
	fn := m.TranscribeFunc
	text, err, latency := m.Text, m.Err, m.Latency
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fn != nil {
		return fn(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, LatencyMs: latency.Milliseconds()}, nil
}

// Health returns the configured health error, if any.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset clears recorded calls and configured errors.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.CallCount = 0
	m.Err = nil
	m.closed = false
}

// WithError configures the mock to fail every call.
func (m *Mock) WithError(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
	return m
}

// WithLatency configures simulated latency.
func (m *Mock) WithLatency(d time.Duration) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Latency = d
	return m
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
