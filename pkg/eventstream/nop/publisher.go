package nop

import (
	"context"

	"github.com/papercomputeco/psyche/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishCascade validates input and otherwise does nothing.
func (p *Publisher) PublishCascade(_ context.Context, event *eventstream.CascadeEvent) error {
	if event == nil {
		return eventstream.ErrNilCascadeEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
