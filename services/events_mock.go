package services

import (
	"context"
	"sync"
)

// MockEventPublisher records published events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

// NewMockEventPublisher creates an empty recorder
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// FailWith makes Publish return err after recording the event
func (m *MockEventPublisher) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Publish records the event
func (m *MockEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

// Close does nothing
func (m *MockEventPublisher) Close() error { return nil }

// Events returns a copy of everything published so far
func (m *MockEventPublisher) Events() []OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderEvent(nil), m.events...)
}

// Types returns the type of each published event in order
func (m *MockEventPublisher) Types() []OrderEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]OrderEventType, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}
