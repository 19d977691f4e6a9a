package eventstream

import "context"

// Publisher publishes cascade events to an event stream backend.
type Publisher interface {
	PublishCascade(ctx context.Context, event *CascadeEvent) error
	Close() error
}
