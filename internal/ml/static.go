package ml

import (
	"context"
	"sync"
)

// StaticModel returns a fixed reply. It stands in for a real model in
// offline runs and tests.
type StaticModel struct {
	Reply string
	Err   error
	Label string

	mu      sync.Mutex
	prompts []string
}

// Load implements TextModel.
func (m *StaticModel) Load(context.Context) error { return nil }

// Name implements TextModel.
func (m *StaticModel) Name() string {
	if m.Label == "" {
		return "static"
	}
	return m.Label
}

// Generate implements TextModel.
func (m *StaticModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.Reply, m.Err
}

// Prompts returns every prompt received so far.
func (m *StaticModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
