package reply

import (
	"context"
	"sync"
	"time"
)

// Mock is a mock reply provider for testing.
type Mock struct {
	mu sync.Mutex

	// GenerateFunc overrides the default Generate behavior.
	GenerateFunc func(ctx context.Context, req *Request) (string, error)

	// Text is returned by the default Generate implementation.
	Text string

	// Err, when set, is returned by every call.
	Err error

	// Latency is simulated before returning.
	Latency time.Duration

	// Calls records the requests passed to Generate.
	Calls []*Request

	// CallCount tracks total Generate invocations.
	CallCount int
}

// NewMock creates a mock provider that answers everything with text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// Generate records the call and returns the configured reply.
func (m *Mock) Generate(ctx context.Context, req *Request) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.CallCount++
	fn := m.GenerateFunc
	text, err, latency := m.Text, m.Err, m.Latency
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Health returns the configured error, if any.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Reset clears recorded calls and configured errors.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.CallCount = 0
	m.Err = nil
}

// WithError configures the mock to fail every call.
func (m *Mock) WithError(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
	return m
}

// LastRequest returns the most recent Generate request, or nil.
func (m *Mock) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1]
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
