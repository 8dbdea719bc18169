package testutil

import (
	"context"
	"sync"

	"solanafetcher/internal/fetcher"
	"solanafetcher/internal/ratelimit"
)

// MockSource is a mock implementation of the fetcher.Source interface for testing
type MockSource[T any] struct {
	FetchFunc func(ctx context.Context, id string) (T, error)
	NameValue string
	APIValue  ratelimit.API
	Def       T

	mu    sync.Mutex
	calls map[string]int
}

// Fetch implements the Source interface
func (m *MockSource[T]) Fetch(ctx context.Context, id string) (T, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[id]++
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, id)
	}
	var zero T
	return zero, nil
}

// Name implements the Source interface
func (m *MockSource[T]) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock.source"
}

// API implements the Source interface
func (m *MockSource[T]) API() ratelimit.API {
	return m.APIValue
}

// Default implements the Source interface
func (m *MockSource[T]) Default() T {
	return m.Def
}

// Calls returns how many times id was fetched
func (m *MockSource[T]) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// TotalCalls returns the number of fetches across all identifiers
func (m *MockSource[T]) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// NewMockSource creates a mock source answering every identifier from values.
// Identifiers missing from values fail with err, or succeed with the zero
// value when err is nil.
func NewMockSource[T any](name string, def T, values map[string]T, err error) *MockSource[T] {
	return &MockSource[T]{
		NameValue: name,
		Def:       def,
		FetchFunc: func(ctx context.Context, id string) (T, error) {
			if v, ok := values[id]; ok {
				return v, nil
			}
			var zero T
			return zero, err
		},
	}
}

var _ fetcher.Source[int] = (*MockSource[int])(nil)
