package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/psyche/pkg/eventstream"
)

// MockPublisher is a test event publisher that records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CascadeEvent

	// Err causes PublishCascade to fail.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishCascade(_ context.Context, event *eventstream.CascadeEvent) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (m *MockPublisher) Events() []*eventstream.CascadeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.CascadeEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
