package sheets

import (
	"context"
	"sync"
)

// Mock records appended rows for testing.
type Mock struct {
	mu   sync.Mutex
	rows [][]string

	// Err, when set, is returned from AppendRow.
	Err error
}

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{}
}

// AppendRow records the row.
func (m *Mock) AppendRow(ctx context.Context, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	row := make([]string, len(cells))
	copy(row, cells)
	m.rows = append(m.rows, row)
	return nil
}

// Rows returns a copy of recorded rows.
func (m *Mock) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rows))
	for i, row := range m.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Reset clears recorded rows.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	m.Err = nil
}
