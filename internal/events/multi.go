package events

import (
	"context"
	"errors"
)

// MultiPublisher fans every event out to several publishers.
type MultiPublisher []Publisher

// Combine returns the publishers as one. Zero publishers yield a NopPublisher
// and a single one is returned as is.
func Combine(publishers ...Publisher) Publisher {
	switch len(publishers) {
	case 0:
		return NopPublisher{}
	case 1:
		return publishers[0]
	}
	return MultiPublisher(publishers)
}

// Publish delivers to every publisher and joins their errors.
func (m MultiPublisher) Publish(ctx context.Context, event AssignmentEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() {
	for _, p := range m {
		p.Close()
	}
}
