package spreadsheet

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps sheets in process memory. It backs the "memory" backend
// and the tests.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string][][]any

	// FailOn makes the named operation ("read", "header", "append") fail.
	FailOn string

	calls []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string][][]any)}
}

// Seed replaces the content of sheet.
func (m *MemoryStore) Seed(sheet string, rows ...[]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = rows
}

func (m *MemoryStore) ReadHeader(_ context.Context, sheet string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "read:"+sheet)
	if m.FailOn == "read" {
		return nil, fmt.Errorf("memory store: read %s failed", sheet)
	}

	rows := m.sheets[sheet]
	if len(rows) == 0 {
		return []string{}, nil
	}
	header := make([]string, 0, len(rows[0]))
	for _, cell := range rows[0] {
		header = append(header, fmt.Sprint(cell))
	}
	return header, nil
}

func (m *MemoryStore) WriteHeader(_ context.Context, sheet string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "header:"+sheet)
	if m.FailOn == "header" {
		return fmt.Errorf("memory store: header write %s failed", sheet)
	}

	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	rows := m.sheets[sheet]
	if len(rows) == 0 {
		m.sheets[sheet] = [][]any{row}
		return nil
	}
	rows[0] = row
	return nil
}

func (m *MemoryStore) AppendRow(_ context.Context, sheet string, row []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "append:"+sheet)
	if m.FailOn == "append" {
		return fmt.Errorf("memory store: append %s failed", sheet)
	}

	m.sheets[sheet] = append(m.sheets[sheet], append([]any(nil), row...))
	return nil
}

// Rows returns a copy of every row of sheet, header included.
func (m *MemoryStore) Rows(sheet string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.sheets[sheet]))
	for i, r := range m.sheets[sheet] {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Calls returns the operations performed so far as "op:sheet" strings.
func (m *MemoryStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
