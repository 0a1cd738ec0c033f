package publishers

import "context"

// Publisher sends digest events to a downstream sink (HTTP, SQS, SNS, Pub/Sub).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Closer is implemented by publishers holding connections that must be flushed on shutdown.
type Closer interface {
	Close() error
}
