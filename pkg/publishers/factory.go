package publishers

import (
	"context"
	"fmt"
)

// Builder creates a Publisher from a checked config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Factory maps publisher types to their builders.
type Factory map[string]Builder

// DefaultFactory knows every publisher type this package ships.
func DefaultFactory() Factory {
	return Factory{
		TypeHTTP:   newHTTPPublisher,
		TypeSQS:    newSQSPublisher,
		TypeSNS:    newSNSPublisher,
		TypePubSub: newPubSubPublisher,
	}
}

// Build creates the publisher for one entry.
func (f Factory) Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	build, ok := f[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("publisher %q: no builder for type %q", cfg.ID, cfg.Type)
	}
	pub, err := build(ctx, cfg, ensureLogger(log))
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	return pub, nil
}

// BuildFanout builds every entry and wraps them in a Fanout. If one entry fails, the publishers
// built so far are closed before the error is returned.
func (f Factory) BuildFanout(ctx context.Context, cfgs []PublisherConfig, log Logger) (*Fanout, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := f.Build(ctx, cfg, log)
		if err != nil {
			if closeErr := NewFanout(pubs).Close(); closeErr != nil {
				ensureLogger(log).WarnObj("publisher cleanup failed", "error", closeErr)
			}
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return NewFanout(pubs), nil
}
