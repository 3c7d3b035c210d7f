package events

import (
	"context"
	"sync"
)

// MockPublisher records published events in memory for test assertions.
type MockPublisher struct {
	mu     sync.Mutex
	Events []Event
	// PublishFunc, if set, overrides the default record-and-succeed behavior.
	PublishFunc func(ctx context.Context, event Event) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) PublishBatch(ctx context.Context, evts []Event) error {
	for _, e := range evts {
		if err := m.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Find returns the first recorded event of the given type, if any.
func (m *MockPublisher) Find(eventType string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.Type == eventType {
			return e, true
		}
	}
	return Event{}, false
}
